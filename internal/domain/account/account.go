// Package account provides the account state consumed by playback gating.
package account

// Account holds the read-only session facts that gate ad scheduling and
// skip-limit enforcement.
type Account struct {
	Authenticated bool // Signed in
	Premium       bool // Premium subscription tier
}

// AdExempt reports whether playback for this account skips ad scheduling.
func (a Account) AdExempt() bool {
	return a.Premium
}

// SkipLimited reports whether the account is subject to the daily skip
// budget. Only authenticated free-tier accounts are throttled.
func (a Account) SkipLimited() bool {
	return a.Authenticated && !a.Premium
}

// Source supplies the current account state. The playback engine treats it
// as an external collaborator and never mutates it.
type Source interface {
	Account() Account
}

// StaticSource is a Source with a fixed account state.
type StaticSource struct {
	Acct Account
}

// Account implements Source.
func (s StaticSource) Account() Account {
	return s.Acct
}

package ads

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/cadenza-audio/cadenza/internal/domain/ad"
)

// catalogFile is the YAML shape of an ad catalog file.
type catalogFile struct {
	Campaigns []fileCampaign `yaml:"campaigns"`
}

type fileCampaign struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	StartDate time.Time `yaml:"start_date"`
	EndDate   time.Time `yaml:"end_date"`
	Ads       []fileAd  `yaml:"ads"`
}

type fileAd struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	AudioURL    string `yaml:"audio_url"`
	DurationSec int    `yaml:"duration_sec"`
	Type        string `yaml:"type"`
	Priority    int    `yaml:"priority"`
	Active      bool   `yaml:"active"`
}

// LoadCatalogFile parses a campaign catalog YAML file.
func LoadCatalogFile(path string) ([]ad.Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ad catalog file")
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, errors.Wrap(err, "failed to parse ad catalog file")
	}

	campaigns := make([]ad.Campaign, 0, len(cf.Campaigns))
	for _, fc := range cf.Campaigns {
		if fc.ID == "" {
			return nil, errors.New("campaign id is required")
		}
		c := ad.Campaign{
			ID:        fc.ID,
			Name:      fc.Name,
			StartDate: fc.StartDate,
			EndDate:   fc.EndDate,
			Ads:       make([]ad.Ad, 0, len(fc.Ads)),
		}
		for _, fa := range fc.Ads {
			adType := ad.Type(fa.Type)
			if adType == "" {
				adType = ad.TypeAudio
			}
			c.Ads = append(c.Ads, ad.Ad{
				ID:          fa.ID,
				Title:       fa.Title,
				Description: fa.Description,
				AudioURL:    fa.AudioURL,
				Duration:    time.Duration(fa.DurationSec) * time.Second,
				Type:        adType,
				Priority:    fa.Priority,
				Active:      fa.Active,
			})
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, nil
}

// LoadCatalogFile loads a campaign file into the scheduler, inserting or
// replacing each campaign by ID.
func (s *Scheduler) LoadCatalogFile(path string) error {
	campaigns, err := LoadCatalogFile(path)
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		s.AddCampaign(c)
	}
	zlog.Info().Msgf("ads: loaded %d campaigns from %s", len(campaigns), path)
	return nil
}

// WatchCatalogFile reloads the campaign file whenever it changes on disk.
// Blocks until ctx is cancelled. The parent directory is watched because
// editors typically replace the file via rename.
func (s *Scheduler) WatchCatalogFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create catalog watcher")
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrap(err, "failed to watch catalog directory")
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.LoadCatalogFile(path); err != nil {
				zlog.Warn().Msgf("ads: catalog reload failed: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Msgf("ads: catalog watcher error: %v", err)
		}
	}
}

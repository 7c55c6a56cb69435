// Package httpapi exposes the player over a JSON HTTP control surface.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/app/ads"
	"github.com/cadenza-audio/cadenza/internal/app/player"
	"github.com/cadenza-audio/cadenza/internal/domain/ad"
	"github.com/cadenza-audio/cadenza/internal/domain/track"
)

// Server wires player and ad-catalog operations onto an HTTP mux.
type Server struct {
	player    *player.Player
	scheduler *ads.Scheduler
}

// NewServer creates a new Server.
func NewServer(p *player.Player, scheduler *ads.Scheduler) *Server {
	return &Server{
		player:    p,
		scheduler: scheduler,
	}
}

// Routes returns the HTTP handler for the control surface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/play", s.handlePlay)
	mux.HandleFunc("POST /v1/queue", s.handlePlayQueue)
	mux.HandleFunc("POST /v1/pause", s.handlePause)
	mux.HandleFunc("POST /v1/resume", s.handleResume)
	mux.HandleFunc("POST /v1/stop", s.handleStop)
	mux.HandleFunc("POST /v1/next", s.handleNext)
	mux.HandleFunc("POST /v1/previous", s.handlePrevious)
	mux.HandleFunc("POST /v1/seek", s.handleSeek)
	mux.HandleFunc("POST /v1/volume", s.handleVolume)
	mux.HandleFunc("POST /v1/shuffle", s.handleShuffle)
	mux.HandleFunc("POST /v1/queue/add", s.handleQueueAdd)
	mux.HandleFunc("POST /v1/queue/remove", s.handleQueueRemove)
	mux.HandleFunc("POST /v1/queue/clear", s.handleQueueClear)
	mux.HandleFunc("POST /v1/ad/dismiss", s.handleDismissAd)
	mux.HandleFunc("POST /v1/skip-limit/ack", s.handleSkipLimitAck)
	mux.HandleFunc("GET /v1/ads/campaigns", s.handleListCampaigns)
	mux.HandleFunc("POST /v1/ads/campaigns", s.handleAddCampaign)
	mux.HandleFunc("DELETE /v1/ads/campaigns/{id}", s.handleRemoveCampaign)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// trackPayload is the wire form of a track.
type trackPayload struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	AudioURL   string `json:"audioUrl,omitempty"`
	StreamURL  string `json:"streamUrl,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
	LocalURL   string `json:"localUrl,omitempty"`
}

func (p trackPayload) toTrack() track.Track {
	return track.Track{
		ID:         p.ID,
		Title:      p.Title,
		Artist:     p.Artist,
		ArtworkURL: p.ArtworkURL,
		Duration:   time.Duration(p.DurationMs) * time.Millisecond,
		AudioURL:   p.AudioURL,
		StreamURL:  p.StreamURL,
		PreviewURL: p.PreviewURL,
		LocalURL:   p.LocalURL,
	}
}

func fromTrack(t track.Track) trackPayload {
	return trackPayload{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		ArtworkURL: t.ArtworkURL,
		DurationMs: t.Duration.Milliseconds(),
		AudioURL:   t.AudioURL,
		StreamURL:  t.StreamURL,
		PreviewURL: t.PreviewURL,
		LocalURL:   t.LocalURL,
	}
}

// adPayload is the wire form of an ad.
type adPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DurationSec int    `json:"durationSec"`
	Type        string `json:"type"`
}

// statusResponse is the wire form of a player snapshot.
type statusResponse struct {
	State              string         `json:"state"`
	CurrentSong        *trackPayload  `json:"currentSong,omitempty"`
	IsPlaying          bool           `json:"isPlaying"`
	IsAdPlaying        bool           `json:"isAdPlaying"`
	CurrentAd          *adPayload     `json:"currentAd,omitempty"`
	PositionMs         int64          `json:"positionMs"`
	DurationMs         int64          `json:"durationMs"`
	Volume             float64        `json:"volume"`
	Queue              []trackPayload `json:"queue"`
	CurrentIndex       int            `json:"currentIndex"`
	QueueSource        string         `json:"queueSource"`
	Shuffled           bool           `json:"shuffled"`
	SkipCount          int            `json:"skipCount"`
	SkipLimit          int            `json:"skipLimit"`
	ShowSkipLimitModal bool           `json:"showSkipLimitModal"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var payload trackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.player.PlaySong(r.Context(), payload.toTrack()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeStatus(w)
}

func (s *Server) handlePlayQueue(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tracks     []trackPayload `json:"tracks"`
		StartIndex int            `json:"startIndex"`
		Source     string         `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tracks := make([]track.Track, 0, len(payload.Tracks))
	for _, tp := range payload.Tracks {
		tracks = append(tracks, tp.toTrack())
	}

	if err := s.player.PlayQueue(r.Context(), tracks, payload.StartIndex, track.QueueSource(payload.Source)); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeStatus(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.player.Pause()
	s.writeStatus(w)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.player.Resume(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeStatus(w)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.player.Stop()
	s.writeStatus(w)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if err := s.player.Next(r.Context()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeStatus(w)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	if err := s.player.Previous(r.Context()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeStatus(w)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PositionMs int64 `json:"positionMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.player.Seek(time.Duration(payload.PositionMs) * time.Millisecond)
	s.writeStatus(w)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Volume float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.player.SetVolume(payload.Volume)
	s.writeStatus(w)
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	s.player.ToggleShuffle()
	s.writeStatus(w)
}

func (s *Server) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	var payload trackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.player.AddToQueue(payload.toTrack())
	s.writeStatus(w)
}

func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.player.RemoveFromQueue(payload.Index)
	s.writeStatus(w)
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	s.player.ClearQueue()
	s.writeStatus(w)
}

func (s *Server) handleDismissAd(w http.ResponseWriter, r *http.Request) {
	s.player.DismissAd()
	s.writeStatus(w)
}

func (s *Server) handleSkipLimitAck(w http.ResponseWriter, r *http.Request) {
	s.player.AcknowledgeSkipLimit()
	s.writeStatus(w)
}

// campaignPayload is the wire form of an ad campaign.
type campaignPayload struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	StartDate time.Time   `json:"startDate"`
	EndDate   time.Time   `json:"endDate"`
	Ads       []adRequest `json:"ads"`
}

type adRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AudioURL    string `json:"audioUrl"`
	DurationSec int    `json:"durationSec"`
	Type        string `json:"type"`
	Priority    int    `json:"priority"`
	Active      bool   `json:"active"`
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns := s.scheduler.Campaigns()
	out := make([]campaignPayload, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, fromCampaign(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddCampaign(w http.ResponseWriter, r *http.Request) {
	var payload campaignPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ID == "" {
		writeError(w, http.StatusBadRequest, "campaign id is required")
		return
	}

	s.scheduler.AddCampaign(toCampaign(payload))
	writeJSON(w, http.StatusCreated, payload)
}

func (s *Server) handleRemoveCampaign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.scheduler.RemoveCampaign(id)
	w.WriteHeader(http.StatusNoContent)
}

func toCampaign(p campaignPayload) ad.Campaign {
	adsOut := make([]ad.Ad, 0, len(p.Ads))
	for _, a := range p.Ads {
		adsOut = append(adsOut, ad.Ad{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			AudioURL:    a.AudioURL,
			Duration:    time.Duration(a.DurationSec) * time.Second,
			Type:        ad.Type(a.Type),
			Priority:    a.Priority,
			Active:      a.Active,
		})
	}
	return ad.Campaign{
		ID:        p.ID,
		Name:      p.Name,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Ads:       adsOut,
	}
}

func fromCampaign(c ad.Campaign) campaignPayload {
	adsOut := make([]adRequest, 0, len(c.Ads))
	for _, a := range c.Ads {
		adsOut = append(adsOut, adRequest{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			AudioURL:    a.AudioURL,
			DurationSec: int(a.Duration / time.Second),
			Type:        string(a.Type),
			Priority:    a.Priority,
			Active:      a.Active,
		})
	}
	return campaignPayload{
		ID:        c.ID,
		Name:      c.Name,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		Ads:       adsOut,
	}
}

func (s *Server) writeStatus(w http.ResponseWriter) {
	snap := s.player.Snapshot()

	resp := statusResponse{
		State:              snap.State.String(),
		IsPlaying:          snap.IsPlaying,
		IsAdPlaying:        snap.IsAdPlaying,
		PositionMs:         snap.Position.Milliseconds(),
		DurationMs:         snap.Duration.Milliseconds(),
		Volume:             snap.Volume,
		CurrentIndex:       snap.CurrentIndex,
		QueueSource:        string(snap.QueueSource),
		Shuffled:           snap.Shuffled,
		SkipCount:          snap.SkipCount,
		SkipLimit:          snap.SkipLimit,
		ShowSkipLimitModal: snap.ShowSkipLimitModal,
	}
	if snap.CurrentSong != nil {
		tp := fromTrack(*snap.CurrentSong)
		resp.CurrentSong = &tp
	}
	if snap.CurrentAd != nil {
		resp.CurrentAd = &adPayload{
			ID:          snap.CurrentAd.ID,
			Title:       snap.CurrentAd.Title,
			Description: snap.CurrentAd.Description,
			DurationSec: int(snap.CurrentAd.Duration / time.Second),
			Type:        string(snap.CurrentAd.Type),
		}
	}
	resp.Queue = make([]trackPayload, 0, len(snap.Queue))
	for _, t := range snap.Queue {
		resp.Queue = append(resp.Queue, fromTrack(t))
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Msgf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  strconv.Itoa(status),
	})
}

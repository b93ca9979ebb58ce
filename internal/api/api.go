// Package api exposes the studio service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/satindergrewal/codystudio/internal/audio"
	"github.com/satindergrewal/codystudio/internal/studio"
	"github.com/satindergrewal/codystudio/internal/waveform"
)

// Previewer plays tracks for WebRTC listeners.
type Previewer interface {
	Load(audio.TrackInfo)
	Stop()
	Status() (audio.TrackInfo, time.Duration, time.Duration)
}

// Server routes HTTP requests to the studio service.
type Server struct {
	log       *zap.SugaredLogger
	svc       *studio.Service
	player    Previewer
	maxUpload int64
	events    http.Handler
	offer     http.Handler
}

// Options wires the optional parts of the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	Events         http.Handler // websocket progress stream
	Offer          http.Handler // WebRTC SDP negotiation
}

// NewServer creates the HTTP front end.
func NewServer(log *zap.SugaredLogger, svc *studio.Service, player Previewer, opts Options) *Server {
	return &Server{
		log:       log,
		svc:       svc,
		player:    player,
		maxUpload: opts.MaxUploadBytes,
		events:    opts.Events,
		offer:     opts.Offer,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()

	r.GET("/api/status", s.status)
	r.GET("/api/presets", s.presets)
	r.GET("/api/views/:view", s.viewState)

	r.GET("/api/tracks", s.listTracks)
	r.POST("/api/tracks", s.uploadTrack)
	r.GET("/api/tracks/:id", s.getTrack)
	r.DELETE("/api/tracks/:id", s.deleteTrack)
	r.GET("/api/tracks/:id/waveform", s.getWaveform)
	r.POST("/api/tracks/:id/master", s.masterTrack)
	r.POST("/api/tracks/:id/stems", s.splitStems)
	r.POST("/api/tracks/:id/preview", s.previewTrack)
	r.DELETE("/api/preview", s.stopPreview)

	r.GET("/api/jobs/:id", s.getJob)
	r.DELETE("/api/jobs/:id", s.cancelJob)

	if s.events != nil {
		r.Handler(http.MethodGet, "/api/events", s.events)
	}
	if s.offer != nil {
		r.Handler(http.MethodPost, "/offer", s.offer)
		r.Handler(http.MethodOptions, "/offer", s.offer)
	}

	r.PanicHandler = func(w http.ResponseWriter, req *http.Request, v any) {
		s.log.Errorw("handler panic", "path", req.URL.Path, "panic", v)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return s.logRequests(r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debugw("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps service errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, studio.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, studio.ErrPremiumRequired):
		status = http.StatusPaymentRequired
	case errors.Is(err, studio.ErrNoStems), errors.Is(err, studio.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, studio.ErrNotReady), errors.Is(err, studio.ErrBusy):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Errorw("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func (s *Server) status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	track, pos, dur := s.player.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"premium": s.svc.Premium(),
		"tracks":  len(s.svc.Tracks()),
		"preview": map[string]any{
			"track_id": track.ID,
			"name":     track.Name,
			"position": pos.Seconds(),
			"duration": dur.Seconds(),
		},
	})
}

func (s *Server) presets(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, studio.Presets)
}

func (s *Server) viewState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	v, err := studio.ParseView(ps.ByName("view"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":     v.Key(),
		"title":   studio.Title(v),
		"premium": studio.Premium(v),
		"locked":  studio.Premium(v) && !s.svc.Premium(),
		"state":   s.svc.ViewState(v),
	})
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.svc.Tracks())
}

func (s *Server) uploadTrack(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	var v studio.View = studio.MasteringView{}
	if key := r.URL.Query().Get("view"); key != "" {
		parsed, err := studio.ParseView(key)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		v = parsed
	}
	switch v.(type) {
	case studio.MasteringView, studio.StemsView:
	default:
		writeError(w, http.StatusBadRequest, "uploads go to aiMastering or aiStems")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" required")
		return
	}
	defer file.Close()

	trackID, t, err := s.svc.Upload(v, header.Filename, file)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   t.ID(),
		"track_id": trackID,
		"view":     v.Key(),
	})
}

func (s *Server) getTrack(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	t, err := s.svc.Track(ps.ByName("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTrack(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.svc.RemoveTrack(ps.ByName("id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getWaveform serves the peaks as JSON, or as an SVG document with
// ?format=svg. ?closed=false draws an outline instead of a filled shape.
func (s *Server) getWaveform(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	t, err := s.svc.Track(ps.ByName("id"))
	if err != nil {
		s.fail(w, err)
		return
	}

	opts := waveform.DefaultPathOptions()
	if r.URL.Query().Get("closed") == "false" {
		opts.Closed = false
	}

	if r.URL.Query().Get("format") == "svg" {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "max-age=3600")
		w.Write(waveform.SVG(t.Waveform, opts))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"track_id": t.ID,
		"buckets":  len(t.Waveform),
		"peaks":    t.Waveform,
		"path":     waveform.Path(t.Waveform, opts),
	})
}

func (s *Server) masterTrack(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		Preset string `json:"preset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Preset == "" {
		writeError(w, http.StatusBadRequest, "preset required")
		return
	}
	t, err := s.svc.Master(ps.ByName("id"), req.Preset)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": t.ID()})
}

func (s *Server) splitStems(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req := struct {
		Tab studio.StemsTab `json:"tab"`
		studio.StemOptions
	}{Tab: studio.TabVocalRemover, StemOptions: studio.DefaultStemOptions()}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
	}
	t, err := s.svc.SplitStems(ps.ByName("id"), req.Tab, req.StemOptions)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": t.ID()})
}

func (s *Server) previewTrack(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	t, err := s.svc.Track(ps.ByName("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.player.Load(audio.TrackInfo{ID: t.ID, Name: t.Name, Path: t.Path})
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "track_id": t.ID})
}

func (s *Server) stopPreview(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.player.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	snap, err := s.svc.Job(ps.ByName("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.svc.CancelJob(ps.ByName("id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

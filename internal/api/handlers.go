package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"playviz/internal/live"
	"playviz/internal/playback"
	"playviz/internal/plays"
	"playviz/internal/sim"
	"playviz/internal/streaming"
)

// Handler methods for routerHandlers

// sessionState is the JSON view of a live play.
type sessionState struct {
	ID          string          `json:"id"`
	Tick        int             `json:"tick"`
	Time        float64         `json:"time"`
	Outcome     sim.Outcome     `json:"outcome"`
	IsComplete  bool            `json:"isComplete"`
	Connected   bool            `json:"connected"`
	Closed      bool            `json:"closed"`
	Error       string          `json:"error,omitempty"`
	Selected    string          `json:"selected,omitempty"`
	AutoPlaying bool            `json:"autoPlaying"`
	Pacing      live.Pacing     `json:"pacing"`
	Playback    playback.Status `json:"playback"`
	LastEvent   *sim.Event      `json:"lastEvent,omitempty"`
	Stats       live.Stats      `json:"stats"`
}

func stateOf(p *plays.Play) sessionState {
	v := p.Session.View()
	st := sessionState{
		ID:          p.ID,
		Connected:   v.Connected,
		Closed:      v.Closed,
		Error:       v.LastError,
		Selected:    v.Selected,
		AutoPlaying: v.AutoPlaying,
		Pacing:      v.Pacing,
		Playback:    p.Controller.Status(),
		Stats:       v.Stats,
		Outcome:     sim.OutcomeInProgress,
	}
	if s := v.Snapshot; s != nil {
		st.Tick = s.Tick
		st.Time = s.Time
		st.Outcome = s.PlayOutcome
		st.IsComplete = s.IsComplete
		if ev, ok := s.LastEvent(); ok {
			st.LastEvent = &ev
		}
	}
	return st
}

func (h *routerHandlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	params := live.SessionParams{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, "Invalid request", http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.createTimeout)
	defer cancel()

	p, err := h.plays.Create(ctx, params)
	if err != nil {
		log.Printf("❌ Session create failed: %v", err)
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sessionId": p.ID,
		"situation": p.Info.Situation,
	})
}

func (h *routerHandlers) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"sessions": h.plays.List()})
}

func (h *routerHandlers) play(w http.ResponseWriter, r *http.Request) (*plays.Play, bool) {
	p, ok := h.plays.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, "Session not found", http.StatusNotFound)
	}
	return p, ok
}

func (h *routerHandlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.play(w, r); ok {
		writeJSON(w, stateOf(p))
	}
}

func (h *routerHandlers) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.plays.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleCommand(w http.ResponseWriter, r *http.Request) {
	p, ok := h.play(w, r)
	if !ok {
		return
	}

	cmd := chi.URLParam(r, "cmd")
	if !live.IsBasic(cmd) {
		writeError(w, "Unknown command: "+cmd, http.StatusBadRequest)
		return
	}

	var err error
	switch cmd {
	case live.CmdStart:
		err = p.Controller.Start()
	case live.CmdPause:
		err = p.Controller.Pause()
	case live.CmdResume:
		err = p.Controller.Resume()
	case live.CmdReset:
		err = p.Controller.Reset()
	case live.CmdStep:
		err = p.Controller.Step()
	}
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, stateOf(p))
}

func (h *routerHandlers) handlePacing(w http.ResponseWriter, r *http.Request) {
	p, ok := h.play(w, r)
	if !ok {
		return
	}

	var req struct {
		Pacing string `json:"pacing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if !live.Pacing(strings.ToLower(strings.TrimSpace(req.Pacing))).Valid() {
		writeError(w, "Unknown pacing: "+req.Pacing, http.StatusBadRequest)
		return
	}
	if _, err := p.Controller.SetPacing(req.Pacing); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, stateOf(p))
}

// selectRequest picks by pixel position or names an entity directly.
type selectRequest struct {
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
	ID *string  `json:"id"`
}

func decodeSelect(w http.ResponseWriter, r *http.Request) (selectRequest, bool) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return req, false
	}
	if req.ID == nil && (req.X == nil || req.Y == nil) {
		writeError(w, "Either id or x and y are required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (h *routerHandlers) handleSelect(w http.ResponseWriter, r *http.Request) {
	p, ok := h.play(w, r)
	if !ok {
		return
	}
	req, ok := decodeSelect(w, r)
	if !ok {
		return
	}

	if req.ID != nil {
		p.Session.Select(*req.ID)
		writeJSON(w, map[string]interface{}{"selected": *req.ID, "hit": true})
		return
	}
	id, hit := p.Pipeline.Select(*req.X, *req.Y)
	writeJSON(w, map[string]interface{}{"selected": p.Session.Selected(), "hit": hit, "picked": id})
}

func (h *routerHandlers) handleSessionFrame(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.play(w, r); ok {
		writeFrame(w, p.Stream.Latest())
	}
}

func (h *routerHandlers) handleRecordedFrames(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.play(w, r); ok {
		writeJSON(w, map[string]interface{}{"frames": p.Session.Frames()})
	}
}

func (h *routerHandlers) handleReplayFromSession(w http.ResponseWriter, r *http.Request) {
	rp, err := h.plays.ReplayFromPlay(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeReplayCreated(w, rp)
}

// =============================================================================
// REPLAYS
// =============================================================================

func (h *routerHandlers) handleCreateReplay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Frames []sim.PlayFrame `json:"frames"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	rp, err := h.plays.CreateReplay(req.Frames)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeReplayCreated(w, rp)
}

func writeReplayCreated(w http.ResponseWriter, rp *plays.Replay) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"replayId": rp.ID,
		"state":    rp.Replay.State(),
	})
}

func (h *routerHandlers) replay(w http.ResponseWriter, r *http.Request) (*plays.Replay, bool) {
	rp, ok := h.plays.GetReplay(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, "Replay not found", http.StatusNotFound)
	}
	return rp, ok
}

func (h *routerHandlers) handleGetReplay(w http.ResponseWriter, r *http.Request) {
	if rp, ok := h.replay(w, r); ok {
		writeJSON(w, rp.Replay.State())
	}
}

func (h *routerHandlers) handleCloseReplay(w http.ResponseWriter, r *http.Request) {
	if err := h.plays.CloseReplay(chi.URLParam(r, "id")); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleReplayPlay(w http.ResponseWriter, r *http.Request) {
	if rp, ok := h.replay(w, r); ok {
		rp.Replay.Play()
		writeJSON(w, rp.Replay.State())
	}
}

func (h *routerHandlers) handleReplayPause(w http.ResponseWriter, r *http.Request) {
	if rp, ok := h.replay(w, r); ok {
		rp.Replay.Pause()
		writeJSON(w, rp.Replay.State())
	}
}

func (h *routerHandlers) handleReplaySeek(w http.ResponseWriter, r *http.Request) {
	rp, ok := h.replay(w, r)
	if !ok {
		return
	}
	var req struct {
		Tick int `json:"tick"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	rp.Replay.Seek(req.Tick)
	writeJSON(w, rp.Replay.State())
}

func (h *routerHandlers) handleReplayStep(w http.ResponseWriter, r *http.Request) {
	rp, ok := h.replay(w, r)
	if !ok {
		return
	}
	var req struct {
		Direction string `json:"direction"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "Invalid request", http.StatusBadRequest)
			return
		}
	}
	switch req.Direction {
	case "", "forward":
		rp.Replay.StepForward()
	case "backward":
		rp.Replay.StepBackward()
	default:
		writeError(w, "direction must be forward or backward", http.StatusBadRequest)
		return
	}
	writeJSON(w, rp.Replay.State())
}

func (h *routerHandlers) handleReplaySpeed(w http.ResponseWriter, r *http.Request) {
	rp, ok := h.replay(w, r)
	if !ok {
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	rp.Replay.SetSpeed(req.Speed)
	writeJSON(w, rp.Replay.State())
}

func (h *routerHandlers) handleReplaySelect(w http.ResponseWriter, r *http.Request) {
	rp, ok := h.replay(w, r)
	if !ok {
		return
	}
	req, ok := decodeSelect(w, r)
	if !ok {
		return
	}

	if req.ID != nil {
		rp.Source.Select(*req.ID)
		writeJSON(w, map[string]interface{}{"selected": *req.ID, "hit": true})
		return
	}
	id, hit := rp.Pipeline.Select(*req.X, *req.Y)
	writeJSON(w, map[string]interface{}{"selected": rp.Source.Selected(), "hit": hit, "picked": id})
}

func (h *routerHandlers) handleReplayFrame(w http.ResponseWriter, r *http.Request) {
	if rp, ok := h.replay(w, r); ok {
		writeFrame(w, rp.Stream.Latest())
	}
}

// Helper functions (package-level for reuse)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, plays.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, plays.ErrLimitReached):
		return http.StatusServiceUnavailable
	case errors.Is(err, plays.ErrNoFrames):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, live.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, live.ErrNotConnected), errors.Is(err, live.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	// Anything else failed on the way to or from the simulation service
	return http.StatusBadGateway
}

func writeFrame(w http.ResponseWriter, f *streaming.EncodedFrame) {
	if f == nil {
		writeError(w, "No frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Tick", strconv.Itoa(f.Tick))
	w.Write(f.PNG)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SessionParams is whatever the host UI chose (teams, play, situation). It
// is passed through to the simulation service untouched.
type SessionParams map[string]any

// SessionInfo is the bootstrap response. SessionID is an opaque token used
// only to open the session connection.
type SessionInfo struct {
	SessionID string          `json:"sessionId"`
	Situation json.RawMessage `json:"situation,omitempty"`
}

// Bootstrapper creates sessions on the simulation service over REST and
// opens their connections.
type Bootstrapper struct {
	apiBase string
	wsBase  string
	opts    Options
	client  *http.Client
}

// NewBootstrapper creates a bootstrapper. apiBase is the REST root (the
// session endpoint is apiBase + "/sessions"); wsBase is the WebSocket root
// the session id is appended to.
func NewBootstrapper(apiBase, wsBase string, opts Options) *Bootstrapper {
	return &Bootstrapper{
		apiBase: strings.TrimRight(apiBase, "/"),
		wsBase:  strings.TrimRight(wsBase, "/"),
		opts:    opts,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateSession asks the simulation service for a new session.
func (b *Bootstrapper) CreateSession(ctx context.Context, params SessionParams) (SessionInfo, error) {
	if params == nil {
		params = SessionParams{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return SessionInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiBase+"/sessions", bytes.NewReader(body))
	if err != nil {
		return SessionInfo{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxMessageSize))
	if err != nil {
		return SessionInfo{}, err
	}
	if resp.StatusCode >= 400 {
		return SessionInfo{}, fmt.Errorf("session create failed: %d - %s", resp.StatusCode, string(respBody))
	}

	var info SessionInfo
	if err := json.Unmarshal(respBody, &info); err != nil {
		return SessionInfo{}, fmt.Errorf("failed to decode session response: %w", err)
	}
	if info.SessionID == "" {
		return SessionInfo{}, errors.New("session response missing sessionId")
	}
	return info, nil
}

// SessionURL returns the WebSocket URL for a session id.
func (b *Bootstrapper) SessionURL(sessionID string) string {
	return b.wsBase + "/" + url.PathEscape(sessionID)
}

// Connect creates a session and opens its connection. prepare, if non-nil,
// runs on the new session before it is opened so observers see the first
// message.
func (b *Bootstrapper) Connect(ctx context.Context, params SessionParams, prepare func(*Session)) (*Session, SessionInfo, error) {
	info, err := b.CreateSession(ctx, params)
	if err != nil {
		return nil, SessionInfo{}, err
	}
	log.Printf("🎬 Simulation session %s created", info.SessionID)

	s := NewSession(info.SessionID, b.opts)
	if prepare != nil {
		prepare(s)
	}
	if err := s.Open(ctx, b.SessionURL(info.SessionID)); err != nil {
		return s, info, err
	}
	return s, info, nil
}

package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestCreateSession checks params pass through and the id comes back
func TestCreateSession(t *testing.T) {
	var got SessionParams
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/sessions" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessionId":"abc 123","situation":{"down":3,"distance":7}}`))
	}))
	defer server.Close()

	b := NewBootstrapper(server.URL+"/api/", "ws://sim/ws/", DefaultOptions())
	info, err := b.CreateSession(context.Background(), SessionParams{"playId": "mesh"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if info.SessionID != "abc 123" {
		t.Errorf("Expected session id 'abc 123', got %q", info.SessionID)
	}
	if got["playId"] != "mesh" {
		t.Errorf("Expected params passed through, got %v", got)
	}
	if !strings.Contains(string(info.Situation), `"down":3`) {
		t.Errorf("Expected situation kept raw, got %s", info.Situation)
	}
	if u := b.SessionURL(info.SessionID); u != "ws://sim/ws/abc%20123" {
		t.Errorf("Unexpected session URL %q", u)
	}
}

// TestCreateSessionErrors checks HTTP errors and missing ids
func TestCreateSessionErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `boom`},
		{"missing id", http.StatusOK, `{}`},
		{"bad json", http.StatusOK, `{"sessionId":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			b := NewBootstrapper(server.URL, "ws://unused", DefaultOptions())
			if _, err := b.CreateSession(context.Background(), nil); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

// TestFeedRetriesAfterDrop checks the management feed reconnects on a fixed delay
func TestFeedRetriesAfterDrop(t *testing.T) {
	var upgrader websocket.Upgrader
	connects := make(chan struct{}, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case connects <- struct{}{}:
		default:
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"roster_update","payload":{}}`))
		conn.Close()
	}))
	defer server.Close()

	got := make(chan Envelope, 8)
	f := NewFeed("ws"+strings.TrimPrefix(server.URL, "http"), 20*time.Millisecond, func(e Envelope) {
		select {
		case got <- e:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-connects:
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected connection %d", i+1)
		}
	}
	select {
	case e := <-got:
		if e.Type != "roster_update" {
			t.Errorf("Unexpected envelope %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("No envelope delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Feed did not stop after cancel")
	}
}

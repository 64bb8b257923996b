package plays

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"playviz/internal/live"
	"playviz/internal/playback"
	"playviz/internal/render"
	"playviz/internal/sim"
	"playviz/internal/streaming"
)

const players = `{"id":"QB","role":"qb","team":"offense","x":0,"y":-5},{"id":"WR7","role":"receiver","team":"offense","x":10,"y":%d}`

// newFakeSim serves session bootstrap and a WebSocket that syncs, then
// sends two ticks.
func newFakeSim(t *testing.T) *httptest.Server {
	var next atomic.Int32
	var upgrader websocket.Upgrader

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"sessionId":"play-%d"}`, next.Add(1))
	})
	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"state_sync","payload":{"tick":0,"players":[`+fmt.Sprintf(players, 0)+`]}}`))
		for tick := 1; tick <= 2; tick++ {
			conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"type":"tick","payload":{"tick":%d,"players":[`+players+`]}}`, tick, tick)))
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testOptions() Options {
	canvas := render.DefaultConfig()
	canvas.Width, canvas.Height = 200, 150
	return Options{
		Canvas:          canvas,
		Stream:          streaming.StreamConfig{FPS: 100},
		MaxSessions:     2,
		MaxReplays:      2,
		MaxReplayFrames: 100,
		ReplayBaseRate:  time.Millisecond,
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestManagerLivePlay(t *testing.T) {
	Convey("Given a manager pointed at a simulation server", t, func() {
		server := newFakeSim(t)
		ws := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
		m := NewManager(live.NewBootstrapper(server.URL+"/api", ws, live.DefaultOptions()), testOptions())
		defer m.Shutdown()

		var mu sync.Mutex
		var events []Event
		m.OnEvent(func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		})

		Convey("When a play is created", func() {
			p, err := m.Create(context.Background(), live.SessionParams{"playId": "mesh"})
			So(err, ShouldBeNil)

			Convey("Then it syncs, ticks and renders", func() {
				So(eventually(func() bool { return p.Session.View().Stats.LastTick == 2 }), ShouldBeTrue)
				So(eventually(func() bool {
					f := p.Stream.Latest()
					return f != nil && f.Tick == 2
				}), ShouldBeTrue)
				So(p.Controller.Status().State, ShouldEqual, playback.StateLive)
				So(m.List(), ShouldResemble, []string{p.ID})
			})

			Convey("Then signals reach the host", func() {
				So(eventually(func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(events) >= 3
				}), ShouldBeTrue)
				mu.Lock()
				So(events[0].Kind, ShouldEqual, EventSignal)
				So(events[0].Signal, ShouldEqual, live.SignalSynced)
				mu.Unlock()
			})

			Convey("Then a pick selects on the session and notifies", func() {
				So(eventually(func() bool {
					f := p.Stream.Latest()
					return f != nil && f.Tick == 2
				}), ShouldBeTrue)
				s := p.Pipeline.Transform().ToScreen(10, 2)
				id, ok := p.Pipeline.Select(s.X, s.Y)
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, "WR7")
				So(p.Session.Selected(), ShouldEqual, "WR7")
			})

			Convey("Then its recorded frames seed a replay", func() {
				So(eventually(func() bool { return len(p.Session.Frames()) == 3 }), ShouldBeTrue)
				r, err := m.ReplayFromPlay(p.ID)
				So(err, ShouldBeNil)
				So(r.Replay.State().TotalTicks, ShouldEqual, 3)
				So(m.CloseReplay(r.ID), ShouldBeNil)
			})

			Convey("Then closing removes it", func() {
				So(m.Close(p.ID), ShouldBeNil)
				_, ok := m.Get(p.ID)
				So(ok, ShouldBeFalse)
				So(p.Session.View().Closed, ShouldBeTrue)
				So(errors.Is(m.Close(p.ID), ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When more plays are created than allowed", func() {
			_, err1 := m.Create(context.Background(), nil)
			_, err2 := m.Create(context.Background(), nil)
			_, err3 := m.Create(context.Background(), nil)

			Convey("Then the extra one is refused", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(errors.Is(err3, ErrLimitReached), ShouldBeTrue)
			})
		})
	})
}

func TestManagerReplays(t *testing.T) {
	Convey("Given a manager with no simulation", t, func() {
		m := NewManager(live.NewBootstrapper("http://127.0.0.1:1", "ws://127.0.0.1:1", live.DefaultOptions()), testOptions())
		defer m.Shutdown()

		frames := make([]sim.PlayFrame, 10)
		for i := range frames {
			frames[i] = sim.PlayFrame{Tick: i, Players: []sim.Entity{{Kinematics: sim.Kinematics{ID: "WR1", Y: float64(i)}}}}
		}

		Convey("When a replay plays to the end", func() {
			done := make(chan struct{}, 1)
			m.OnEvent(func(ev Event) {
				if ev.Kind == EventReplay {
					select {
					case done <- struct{}{}:
					default:
					}
				}
			})
			r, err := m.CreateReplay(frames)
			So(err, ShouldBeNil)
			r.Replay.Play()

			Convey("Then completion is reported and the last frame renders", func() {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Fatal("replay never completed")
				}
				So(eventually(func() bool {
					f := r.Stream.Latest()
					return f != nil && f.Tick == 9
				}), ShouldBeTrue)
			})
		})

		Convey("When the replay is empty or too long", func() {
			_, errEmpty := m.CreateReplay(nil)
			_, errLong := m.CreateReplay(make([]sim.PlayFrame, 101))

			Convey("Then both are refused", func() {
				So(errors.Is(errEmpty, ErrNoFrames), ShouldBeTrue)
				So(errors.Is(errLong, ErrLimitReached), ShouldBeTrue)
			})
		})

		Convey("When replaying an unknown play", func() {
			_, err := m.ReplayFromPlay("nope")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

// TestCatchBetweenRenders checks a catch is detected when the throw and the
// catch land on consecutive ticks with no frame drawn in between
func TestCatchBetweenRenders(t *testing.T) {
	var selected []string
	s := live.NewSession("play-catch", live.DefaultOptions())
	defer s.Close()
	p := Attach(s, testOptions(), func(ev Event) {
		if ev.Kind == EventSelected {
			selected = append(selected, ev.EntityID)
		}
	})

	team := fmt.Sprintf(players, 20)
	msgs := []string{
		`{"type":"state_sync","payload":{"tick":0,"players":[` + team + `],"ball":{"state":"held","carrierId":"QB","x":0,"y":-5}}}`,
		`{"type":"tick","payload":{"tick":1,"players":[` + team + `],"ball":{"state":"in_flight","x":5,"y":8,"progress":0.5}}}`,
		`{"type":"tick","payload":{"tick":2,"players":[` + team + `],"ball":{"state":"held","carrierId":"WR7","x":10,"y":20}}}`,
	}
	for _, msg := range msgs {
		if err := s.Apply([]byte(msg)); err != nil {
			t.Fatalf("Expected %s to apply, got %v", msg, err)
		}
	}

	if _, err := p.Pipeline.Render(render.Input{Snapshot: s.Snapshot(), Selected: s.Selected()}); err != nil {
		t.Fatalf("Expected render to succeed, got %v", err)
	}
	if n := len(p.Pipeline.Catches()); n != 1 {
		t.Errorf("Expected 1 catch effect, got %d", n)
	}
	if s.Selected() != "WR7" {
		t.Errorf("Expected WR7 selected after the catch, got %q", s.Selected())
	}
	if len(selected) != 1 || selected[0] != "WR7" {
		t.Errorf("Expected one selection event for WR7, got %v", selected)
	}
}

// TestReplayDetectsCatches checks a playing replay spawns catch effects
func TestReplayDetectsCatches(t *testing.T) {
	m := NewManager(nil, testOptions())
	defer m.Shutdown()

	qb := sim.Entity{Kinematics: sim.Kinematics{ID: "QB", Team: sim.TeamOffense, Role: sim.RoleQB, Y: -5}}
	wr := sim.Entity{Kinematics: sim.Kinematics{ID: "WR7", Team: sim.TeamOffense, Role: sim.RoleReceiver, X: 10, Y: 20}}
	balls := []sim.BallState{
		{State: sim.BallHeld, CarrierID: "QB"},
		{State: sim.BallInFlight, Progress: 0.5},
		{State: sim.BallHeld, CarrierID: "WR7"},
		{State: sim.BallHeld, CarrierID: "WR7"},
	}
	frames := make([]sim.PlayFrame, len(balls))
	for i := range balls {
		frames[i] = sim.PlayFrame{Tick: i, Players: []sim.Entity{qb, wr}, Ball: &balls[i]}
	}

	rp, err := m.CreateReplay(frames)
	if err != nil {
		t.Fatalf("Expected replay, got %v", err)
	}
	rp.Replay.Play()
	if !eventually(func() bool { return len(rp.Pipeline.Catches()) == 1 }) {
		t.Errorf("Expected 1 catch effect, got %d", len(rp.Pipeline.Catches()))
	}
	if !eventually(func() bool { return rp.Source.Selected() == "WR7" }) {
		t.Errorf("Expected WR7 selected, got %q", rp.Source.Selected())
	}
}

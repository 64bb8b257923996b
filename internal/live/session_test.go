package live

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"playviz/internal/sim"
)

func stateSync(tick int, players string) []byte {
	return []byte(fmt.Sprintf(`{"type":"state_sync","payload":{"tick":%d,"time":0,"isRunning":true,"players":[%s],"ball":{"state":"held","carrierId":"QB","x":0,"y":-5,"height":1}}}`, tick, players))
}

func tickMsg(tick int, players string, events string) []byte {
	return []byte(fmt.Sprintf(`{"type":"tick","payload":{"tick":%d,"time":%f,"players":[%s],"playOutcome":"in_progress","events":[%s]}}`, tick, float64(tick)*0.05, players, events))
}

func completeMsg(tick int, players string) []byte {
	return []byte(fmt.Sprintf(`{"type":"complete","payload":{"tick":%d,"time":%f,"players":[%s],"playOutcome":"complete"}}`, tick, float64(tick)*0.05, players))
}

func twoPlayers(wrY float64) string {
	return fmt.Sprintf(`{"id":"QB","role":"qb","x":0,"y":-5},{"id":"WR7","role":"receiver","x":10,"y":%f}`, wrY)
}

func TestSessionScenario(t *testing.T) {
	Convey("Given a fresh session", t, func() {
		s := NewSession("s1", DefaultOptions())

		Convey("When state_sync, two ticks and complete are applied", func() {
			So(s.Apply(stateSync(0, twoPlayers(0))), ShouldBeNil)
			So(s.Apply(tickMsg(1, twoPlayers(1), `{"tick":1,"time":0.05,"type":"snap"}`)), ShouldBeNil)
			So(s.Apply(tickMsg(2, twoPlayers(2), `{"tick":2,"time":0.1,"type":"throw"}`)), ShouldBeNil)
			So(s.Apply(completeMsg(2, twoPlayers(9))), ShouldBeNil)

			Convey("Then the snapshot is complete with the final positions", func() {
				snap := s.Snapshot()
				So(snap.IsComplete, ShouldBeTrue)
				wr, ok := snap.Find("WR7")
				So(ok, ShouldBeTrue)
				So(wr.Y, ShouldEqual, 9)
			})

			Convey("Then every entity has three history samples", func() {
				So(s.HistoryLen("QB"), ShouldEqual, 3)
				So(s.HistoryLen("WR7"), ShouldEqual, 3)
			})

			Convey("Then the first entity was selected by default", func() {
				So(s.Selected(), ShouldEqual, "QB")
			})
		})

		Convey("When ticks append events", func() {
			s.Apply(stateSync(0, twoPlayers(0)))
			s.Apply(tickMsg(1, twoPlayers(1), `{"tick":1,"type":"snap"}`))
			s.Apply(tickMsg(2, twoPlayers(2), `{"tick":2,"type":"throw"}`))

			Convey("Then the event log keeps both", func() {
				So(len(s.Snapshot().Events), ShouldEqual, 2)
			})
		})

		Convey("When a later state_sync resets to tick 0", func() {
			s.Apply(stateSync(0, twoPlayers(0)))
			s.Apply(tickMsg(1, twoPlayers(1), ""))
			s.Apply(tickMsg(2, twoPlayers(2), ""))
			So(s.HistoryLen("WR7"), ShouldEqual, 3)
			s.Apply(stateSync(0, twoPlayers(0)))

			Convey("Then history is cleared before the new sample", func() {
				So(s.HistoryLen("WR7"), ShouldEqual, 1)
				So(len(s.Frames()), ShouldEqual, 1)
			})
		})

		Convey("When a selection already exists", func() {
			s.Select("WR7")
			s.Apply(stateSync(0, twoPlayers(0)))

			Convey("Then state_sync keeps it", func() {
				So(s.Selected(), ShouldEqual, "WR7")
			})
		})
	})
}

func TestSessionOrdering(t *testing.T) {
	Convey("Given a synced session at tick 3", t, func() {
		s := NewSession("s2", DefaultOptions())
		s.Apply(stateSync(0, twoPlayers(0)))
		for i := 1; i <= 3; i++ {
			s.Apply(tickMsg(i, twoPlayers(float64(i)), ""))
		}

		Convey("When a duplicate or older tick arrives", func() {
			s.Apply(tickMsg(2, twoPlayers(-50), ""))
			s.Apply(tickMsg(3, twoPlayers(-50), ""))

			Convey("Then it is dropped as stale", func() {
				v := s.View()
				So(v.Stats.Stale, ShouldEqual, 2)
				So(v.Snapshot.Tick, ShouldEqual, 3)
				wr, _ := v.Snapshot.Find("WR7")
				So(wr.Y, ShouldEqual, 3)
			})
		})

		Convey("When a tick skips ahead", func() {
			s.Apply(tickMsg(6, twoPlayers(6), ""))

			Convey("Then it is applied and counted as a gap", func() {
				v := s.View()
				So(v.Stats.Gaps, ShouldEqual, 1)
				So(v.Snapshot.Tick, ShouldEqual, 6)
				So(s.HistoryLen("WR7"), ShouldEqual, 5)
			})
		})
	})
}

func TestSessionMessageClasses(t *testing.T) {
	Convey("Given a synced session", t, func() {
		s := NewSession("s3", DefaultOptions())
		s.Apply(stateSync(0, twoPlayers(0)))

		Convey("When an error envelope arrives", func() {
			err := s.Apply([]byte(`{"type":"error","message":"engine exploded"}`))

			Convey("Then the message is surfaced and the snapshot untouched", func() {
				So(err, ShouldBeNil)
				v := s.View()
				So(v.LastError, ShouldEqual, "engine exploded")
				So(v.Snapshot.Tick, ShouldEqual, 0)
				So(len(v.Snapshot.Players), ShouldEqual, 2)
			})
		})

		Convey("When the error text is in the payload", func() {
			s.Apply([]byte(`{"type":"error","payload":{"message":"bad play id"}}`))
			So(s.View().LastError, ShouldEqual, "bad play id")
		})

		Convey("When an unknown type arrives", func() {
			err := s.Apply([]byte(`{"type":"crowd_noise","payload":{"db":110}}`))

			Convey("Then it is ignored", func() {
				So(err, ShouldBeNil)
				So(s.View().Stats.Ignored, ShouldEqual, 1)
			})
		})

		Convey("When malformed JSON arrives", func() {
			err := s.Apply([]byte(`{"type":"tick","payload":{"tick":"one"`))

			Convey("Then a ProtocolError is returned and the session continues", func() {
				var perr *ProtocolError
				So(errors.As(err, &perr), ShouldBeTrue)
				So(s.Apply(tickMsg(1, twoPlayers(1), "")), ShouldBeNil)
				So(s.Snapshot().Tick, ShouldEqual, 1)
			})
		})

		Convey("When a payload entity is missing its id", func() {
			err := s.Apply([]byte(`{"type":"tick","payload":{"tick":1,"players":[{"role":"qb"}]}}`))

			Convey("Then the message is dropped as a protocol error", func() {
				var perr *ProtocolError
				So(errors.As(err, &perr), ShouldBeTrue)
				So(perr.Type, ShouldEqual, TypeTick)
				So(s.Snapshot().Tick, ShouldEqual, 0)
			})
		})

		Convey("When auto-play stops and starts", func() {
			var signals []Signal
			s.OnSignal = func(sig Signal) { signals = append(signals, sig) }
			s.Apply([]byte(`{"type":"auto_play_stopped"}`))
			So(s.View().AutoPlaying, ShouldBeFalse)
			So(s.Snapshot().IsPaused, ShouldBeTrue)
			s.Apply([]byte(`{"type":"auto_play_started","payload":{"pacing":"fast"}}`))

			Convey("Then the echo updates pacing and the observer sees both", func() {
				v := s.View()
				So(v.AutoPlaying, ShouldBeTrue)
				So(v.Pacing, ShouldEqual, PacingFast)
				So(signals, ShouldResemble, []Signal{SignalAutoPlayStopped, SignalAutoPlayStarted})
			})
		})

		Convey("When the session is closed", func() {
			s.Close()
			s.Apply(tickMsg(1, twoPlayers(1), ""))

			Convey("Then later messages are not applied", func() {
				So(s.Snapshot().Tick, ShouldEqual, 0)
				So(s.Send(Bare(CmdStart)), ShouldEqual, ErrSessionClosed)
			})
		})
	})
}

func TestSessionChangesCoalesce(t *testing.T) {
	Convey("Given a session nobody is reading changes from", t, func() {
		s := NewSession("s4", DefaultOptions())

		Convey("When several messages are applied", func() {
			s.Apply(stateSync(0, twoPlayers(0)))
			s.Apply(tickMsg(1, twoPlayers(1), ""))
			s.Apply(tickMsg(2, twoPlayers(2), ""))

			Convey("Then exactly one notification is pending", func() {
				So(len(s.Changes()), ShouldEqual, 1)
			})
		})
	})
}

func TestSessionObservesEverySnapshot(t *testing.T) {
	Convey("Given a session with a snapshot observer", t, func() {
		s := NewSession("s5", DefaultOptions())
		var ticks []int
		var resyncs []bool
		s.OnSnapshot = func(snap *sim.Snapshot, resync bool) {
			ticks = append(ticks, snap.Tick)
			resyncs = append(resyncs, resync)
		}

		Convey("When ticks arrive faster than anyone reads changes", func() {
			s.Apply(stateSync(0, twoPlayers(0)))
			s.Apply(tickMsg(1, twoPlayers(1), ""))
			s.Apply(tickMsg(2, twoPlayers(2), ""))
			s.Apply(tickMsg(2, twoPlayers(-9), ""))
			s.Apply(completeMsg(3, twoPlayers(3)))

			Convey("Then every applied snapshot is observed once, in order", func() {
				So(len(s.Changes()), ShouldEqual, 1)
				So(ticks, ShouldResemble, []int{0, 1, 2, 3})
				So(resyncs, ShouldResemble, []bool{true, false, false, false})
			})
		})

		Convey("When the simulation restarts from tick 0", func() {
			s.Apply(stateSync(0, twoPlayers(0)))
			s.Apply(tickMsg(1, twoPlayers(1), ""))
			s.Apply(tickMsg(0, twoPlayers(0), ""))

			Convey("Then the restart is flagged as a resync", func() {
				So(resyncs, ShouldResemble, []bool{true, false, true})
			})
		})
	})
}

func TestSendBeforeOpen(t *testing.T) {
	s := NewSession("s5", DefaultOptions())
	if err := s.Send(Bare(CmdStart)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

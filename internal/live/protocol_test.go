package live

import (
	"encoding/json"
	"testing"
)

// TestParsePacing checks invalid values clamp to normal
func TestParsePacing(t *testing.T) {
	tests := []struct {
		in   string
		want Pacing
	}{
		{"slow", PacingSlow},
		{"FAST", PacingFast},
		{" step ", PacingStep},
		{"ludicrous", PacingNormal},
		{"", PacingNormal},
	}
	for _, tt := range tests {
		if got := ParsePacing(tt.in); got != tt.want {
			t.Errorf("ParsePacing(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

// TestCommandWireFormat checks bare and pacing commands encode as expected
func TestCommandWireFormat(t *testing.T) {
	b, _ := json.Marshal(Bare(CmdStep))
	if string(b) != `{"type":"step"}` {
		t.Errorf("Unexpected bare command %s", b)
	}
	b, _ = json.Marshal(WithPacing(CmdSetPacing, PacingFast))
	if string(b) != `{"type":"set_pacing","payload":{"pacing":"fast"}}` {
		t.Errorf("Unexpected pacing command %s", b)
	}
}

// TestDialectTranslate checks each command in both dialects
func TestDialectTranslate(t *testing.T) {
	c, err := DialectCoach.Translate(WithPacing(CmdStartAutoPlay, PacingSlow))
	if err != nil || c.Type != CmdStartAutoPlay || c.Payload.Pacing != PacingSlow {
		t.Errorf("Coach dialect should pass commands through, got %+v (%v)", c, err)
	}

	tests := []struct {
		in   Command
		want string
	}{
		{WithPacing(CmdStartAutoPlay, PacingFast), CmdResume},
		{Bare(CmdStopAutoPlay), CmdPause},
		{Bare(CmdReset), CmdReset},
	}
	for _, tt := range tests {
		got, err := DialectVisualization.Translate(tt.in)
		if err != nil || got.Type != tt.want || got.Payload != nil {
			t.Errorf("Translate(%s): expected bare %s, got %+v (%v)", tt.in.Type, tt.want, got, err)
		}
	}
}

// TestErrorText checks every place an error message can live
func TestErrorText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"type":"error","message":"a"}`, "a"},
		{`{"type":"error","payload":"b"}`, "b"},
		{`{"type":"error","payload":{"error":"c"}}`, "c"},
		{`{"type":"error"}`, "unknown error"},
	}
	for _, tt := range tests {
		var e Envelope
		if err := json.Unmarshal([]byte(tt.raw), &e); err != nil {
			t.Fatalf("Decode %s: %v", tt.raw, err)
		}
		if got := e.ErrorText(); got != tt.want {
			t.Errorf("ErrorText(%s): expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}

// TestPacingValidAndBasicCommands checks what the HTTP layer accepts
func TestPacingValidAndBasicCommands(t *testing.T) {
	if !PacingStep.Valid() || Pacing("warp").Valid() || Pacing("").Valid() {
		t.Error("Valid misclassified pacing values")
	}
	for _, cmd := range []string{CmdStart, CmdPause, CmdResume, CmdReset, CmdStep} {
		if !IsBasic(cmd) {
			t.Errorf("Expected %s to be a basic command", cmd)
		}
	}
	if IsBasic(CmdSetPacing) || IsBasic(CmdStartAutoPlay) || IsBasic("explode") {
		t.Error("Expected pacing and auto-play commands not to be basic")
	}
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Zereker/framesock"
)

// Verify that the adapter satisfies the library's Logger interface.
var _ framesock.Logger = (*Adapter)(nil)

// Verify that the traffic sink satisfies the Observer interface.
var _ framesock.Observer = (*TrafficObserver)(nil)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"error":   zerolog.ErrorLevel,
	}
	for raw, want := range tests {
		got, err := ParseLevel(raw)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	zl, err := New("test", "info", &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	zl.Debug().Msg("hidden")
	zl.Info().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("info line missing")
	}
}

func TestAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := NewAdapter(zerolog.New(&buf))

	a.Info("connection accepted", "id", 7, "addr", "127.0.0.1:1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["message"] != "connection accepted" || line["level"] != "info" {
		t.Errorf("line = %v", line)
	}
	if line["id"] != float64(7) || line["addr"] != "127.0.0.1:1" {
		t.Errorf("fields = %v", line)
	}
}

func TestAdapter_OddArgs(t *testing.T) {
	var buf bytes.Buffer
	a := NewAdapter(zerolog.New(&buf))

	a.Warn("odd", "dangling")
	if !strings.Contains(buf.String(), `"dangling":"!MISSING"`) {
		t.Errorf("line = %s", buf.String())
	}
}

func TestTrafficObserver(t *testing.T) {
	var buf bytes.Buffer
	o := NewTrafficObserver(zerolog.New(&buf))

	c, err := framesock.NewConn()
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}
	o.OnMessage(c, []byte("hi"))
	o.OnSent(c, []byte("there"))
	o.OnClosed(c)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}

	var in map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &in); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in["dir"] != inbound || in["bytes"] != float64(2) || in["conn"] != float64(c.ID()) {
		t.Errorf("inbound line = %v", in)
	}
	if !strings.Contains(lines[1], `"dir":"-->"`) {
		t.Errorf("outbound line = %s", lines[1])
	}
	if !strings.Contains(lines[2], "connection terminated") {
		t.Errorf("close line = %s", lines[2])
	}
}

func TestPreview(t *testing.T) {
	if got := Preview([]byte("a\nb")); got != `"a\nb"` {
		t.Errorf("Preview = %s", got)
	}

	long := strings.Repeat("x", previewLen+10)
	got := Preview([]byte(long))
	if !strings.HasSuffix(got, "...") || len(got) != previewLen+2+3 {
		t.Errorf("Preview of long payload = %s", got)
	}
}

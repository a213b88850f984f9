package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestInfo_WritesLevelMessageAndPairs(t *testing.T) {
	buf := capture(t, LevelInfo)

	Info("calendar created", "name", "work", "timezone", "Asia/Tokyo")

	line := buf.String()
	for _, want := range []string{"[INFO]", "calendar created", "name=work", "timezone=Asia/Tokyo"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q does not contain %q", line, want)
		}
	}
}

func TestDebug_SuppressedAtInfo(t *testing.T) {
	buf := capture(t, LevelInfo)

	Debug("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestWarn_SuppressedAtError(t *testing.T) {
	buf := capture(t, LevelError)

	Warn("hidden")
	Error("shown", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("warn line written at error level: %q", out)
	}
	if !strings.Contains(out, "err=boom") {
		t.Errorf("error line missing err pair: %q", out)
	}
}

func TestFormatKVs_QuotesSpacesAndDropsOddValue(t *testing.T) {
	got := formatKVs("subject", "Team Meeting", "count", 3, "dangling")
	want := ` subject="Team Meeting" count=3`
	if got != want {
		t.Errorf("formatKVs = %q, want %q", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

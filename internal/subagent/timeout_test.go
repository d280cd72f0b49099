package subagent

import (
	"bytes"
	"log/slog"
	"testing"
	"time"
)

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"30m", 1_800_000 * time.Millisecond},
		{"1h", 3_600_000 * time.Millisecond},
		{"500", 500 * time.Millisecond},
		{"45s", 45_000 * time.Millisecond},
		{"250ms", 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := ParseTimeout(tt.value, slog.Default())
			if got != tt.want {
				t.Errorf("ParseTimeout(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseTimeout_MalformedFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	got := ParseTimeout("abc", logger)
	if got != DefaultTimeout {
		t.Errorf("got %v, want default %v", got, DefaultTimeout)
	}
	if !bytes.Contains(buf.Bytes(), []byte("invalid subagent timeout")) {
		t.Error("expected a logged warning")
	}
}

func TestParseTimeout_BadSuffix(t *testing.T) {
	got := ParseTimeout("10d", slog.Default())
	if got != DefaultTimeout {
		t.Errorf("got %v, want default", got)
	}
}

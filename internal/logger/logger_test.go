package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		env       string
		wantDebug bool
		wantJSON  bool
	}{
		{EnvLocal, true, false},
		{EnvDev, true, true},
		{EnvProd, false, true},
		{"unknown", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			log := Setup(tt.env, &buf)

			log.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}

			buf.Reset()
			log.Info("info message", slog.Int("scans", 3))
			var decoded map[string]any
			isJSON := json.Unmarshal(buf.Bytes(), &decoded) == nil
			if isJSON != tt.wantJSON {
				t.Errorf("JSON output = %v, want %v: %q", isJSON, tt.wantJSON, buf.String())
			}
		})
	}
}

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	log := Setup(EnvLocal, &buf).
		With(slog.String("component", "search")).
		WithGroup("run")

	log.Info("search finished", slog.Duration("elapsed", 1500*time.Millisecond), slog.Int("matched", 2))

	out := buf.String()
	for _, want := range []string{"INFO:", "search finished", `"component": "search"`, `"run.elapsed": "1.5s"`, `"run.matched": 2`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

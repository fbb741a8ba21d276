package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dynamicmaps/overlay/internal/dispatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func TestDispatcherLogger(t *testing.T) {
	tests := []struct {
		level string
		log   func(l *DispatcherLogger)
		want  map[string]any
	}{
		{
			level: "DEBUG",
			log:   func(l *DispatcherLogger) { l.Debug("dispatch", "command", ":TICK:") },
			want:  map[string]any{"msg": "dispatch", "command": ":TICK:"},
		},
		{
			level: "INFO",
			log:   func(l *DispatcherLogger) { l.Info("handler registered", "command", ":MAP:LOAD:", "buffered", false) },
			want:  map[string]any{"msg": "handler registered", "command": ":MAP:LOAD:", "buffered": false},
		},
		{
			level: "ERROR",
			log:   func(l *DispatcherLogger) { l.Error("handler failed", "queued", 3) },
			want:  map[string]any{"msg": "handler failed", "queued": float64(3)},
		},
		{
			level: "DEBUG",
			log:   func(l *DispatcherLogger) { l.Debug("no attributes") },
			want:  map[string]any{"msg": "no attributes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.want["msg"].(string), func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

			tt.log(dl)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			for k, v := range tt.want {
				assert.Equal(t, v, entry[k], k)
			}
		})
	}
}

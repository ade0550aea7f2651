package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPbkHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "20240115T103000Z",
			level:   slog.LevelInfo,
			message: "file copied",
			want:    "2024-01-15T10:30:00Z\tINFO\t20240115T103000Z\tfile copied\n",
		},
		{
			name:    "warning",
			opID:    "op-2",
			level:   slog.LevelWarn,
			message: "file not found",
			want:    "2024-01-15T10:30:00Z\tWARN\top-2\tfile not found\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-3",
			level:   slog.LevelInfo,
			message: "database copied",
			attrs:   []slog.Attr{slog.String("path", "referral_orders.db"), slog.Int64("size", 4096)},
			want:    "2024-01-15T10:30:00Z\tINFO\top-3\tdatabase copied\tpath=referral_orders.db\tsize=4096\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &pbkHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestPbkHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &pbkHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "scheduler")}).(*pbkHandler)
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "tick", 0)
	r.AddAttrs(slog.String("key", "abc"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"a=1", "component=scheduler", "key=abc"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %s: %q", want, got)
		}
	}
}

func TestPbkHandler_Enabled(t *testing.T) {
	h := &pbkHandler{level: slog.LevelInfo}

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(DEBUG) = true for info handler")
	}
	for _, level := range []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	var console bytes.Buffer

	logger, f, err := newLogger(dir, "test-op", &console)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.Debug("debug detail")
	logger.Info("backup started", "root", "/tmp/backup")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "debug detail") || !strings.Contains(string(data), "backup started") {
		t.Errorf("log file missing records: %q", data)
	}

	if strings.Contains(console.String(), "debug detail") {
		t.Error("debug record written to console")
	}
	if !strings.Contains(console.String(), "\ttest-op\tbackup started\troot=/tmp/backup") {
		t.Errorf("console missing info record: %q", console.String())
	}
}

package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		debug   bool
		trace   bool
		wantErr bool
	}{
		{"trace", true, true, false},
		{"debug", true, false, false},
		{"info", false, false, false},
		{"WARN", false, false, false},
		{"invalid", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := newLogger(&LoggerConfig{Level: tt.level}, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("newLogger(%q) should return error", tt.level)
				}
				if !strings.Contains(err.Error(), "invalid log level") {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("newLogger(%q) returned error: %v", tt.level, err)
			}
			if l.IsDebugEnabled() != tt.debug {
				t.Errorf("IsDebugEnabled() = %v, expected %v", l.IsDebugEnabled(), tt.debug)
			}
			if l.IsTraceEnabled() != tt.trace {
				t.Errorf("IsTraceEnabled() = %v, expected %v", l.IsTraceEnabled(), tt.trace)
			}
		})
	}
}

func TestPatternOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&LoggerConfig{
		Level:   "debug",
		Pattern: "[%level] %msg {%field}\n",
	}, &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	l.WithFields(map[string]interface{}{"port": 15011, "backend": "pcap"}).Info("capture opened")

	expected := "[info] capture opened {backend=pcap,port=15011}\n"
	if buf.String() != expected {
		t.Errorf("got %q, expected %q", buf.String(), expected)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&LoggerConfig{Level: "warn", Pattern: "%level:%msg\n"}, &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	l.Debug("dropped")
	l.Info("dropped too")
	l.WithError(errors.New("boom")).Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("expected debug and info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "warning:kept") {
		t.Errorf("expected warn line, got %q", out)
	}
}

func TestFileAppender(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "dpsmeter.log")

	l, err := newLogger(&LoggerConfig{
		Level: "info",
		File: FileAppenderOpt{
			Filename:   logPath,
			MaxSize:    1,
			MaxBackups: 1,
			MaxAge:     1,
		},
	}, nil)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	l.Info("written to file")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file was not created at %s: %v", logPath, err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing message, got %q", string(data))
	}
}

func TestMultiWriterContinuesOnError(t *testing.T) {
	var buf bytes.Buffer
	mw := NewMultiWriter().Add(failingWriter{}).Add(&buf)

	n, err := mw.Write([]byte("line"))
	if err == nil {
		t.Error("expected error from failing writer")
	}
	if n != 4 {
		t.Errorf("expected 4 bytes reported, got %d", n)
	}
	if buf.String() != "line" {
		t.Errorf("second writer got %q", buf.String())
	}
	if mw.Len() != 2 {
		t.Errorf("expected 2 writers, got %d", mw.Len())
	}
}

func TestGetLoggerBeforeInit(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("expected default logger before Init")
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("write failed") }

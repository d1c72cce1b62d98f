package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestGlobalLogger_SetAndReset(t *testing.T) {
	custom := zap.NewExample()
	SetLogger(custom)
	if Logger() != custom {
		t.Fatal("expected custom logger to be installed")
	}

	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("expected nil reset to install a no-op logger")
	}
	if Logger() == custom {
		t.Fatal("expected nil reset to replace the custom logger")
	}
}

func TestNew_StageLevels(t *testing.T) {
	live, err := New("live")
	if err != nil {
		t.Fatalf("New(live): %v", err)
	}
	if live.Core().Enabled(zap.DebugLevel) {
		t.Fatal("live logger should not log at debug level")
	}

	dev, err := New("dev")
	if err != nil {
		t.Fatalf("New(dev): %v", err)
	}
	if !dev.Core().Enabled(zap.DebugLevel) {
		t.Fatal("dev logger should log at debug level")
	}
}

func TestSanitizeLogString(t *testing.T) {
	got := SanitizeLogString("host\r\nInjected: yes\x00")
	if got != "host  Injected: yes" {
		t.Fatalf("unexpected sanitized string: %q", got)
	}
}

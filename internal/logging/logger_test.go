package logging

import (
	"testing"

	"github.com/tipgate/tipgate/internal/config"
)

func TestNewAcceptsSupportedLevelsAndFormats(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "", "INFO"} {
		for _, format := range []string{"json", "text", ""} {
			logger, err := New(config.LoggingConfig{Level: level, Format: format})
			if err != nil {
				t.Fatalf("level %q format %q: %v", level, format, err)
			}
			if logger == nil {
				t.Fatalf("level %q format %q: nil logger", level, format)
			}
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "verbose"}); err == nil {
		t.Fatalf("expected error for unsupported level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "info", Format: "logfmt"}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

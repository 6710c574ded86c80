package observability

import (
	"testing"

	"github.com/spec-kit/ticket-bot/internal/config"
)

func TestNewLoggerAppliesName(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "debug", Name: "support-ticket-bot"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if got := logger.Name(); got != "support-ticket-bot" {
		t.Errorf("logger name = %q, want %q", got, "support-ticket-bot")
	}
}

func TestNewLoggerToleratesBadLevel(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "nonsense"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Name() != "" {
		t.Errorf("unnamed config produced name %q", logger.Name())
	}
}

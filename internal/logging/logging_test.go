package logging

import (
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewSetsDebugLevelWhenRequested(t *testing.T) {
	logger := New(true)
	if logger.GetLevel() != log.DebugLevel {
		t.Fatalf("expected DebugLevel, got %v", logger.GetLevel())
	}
}

func TestNewDefaultsToInfoLevel(t *testing.T) {
	logger := New(false)
	if logger.GetLevel() != log.InfoLevel {
		t.Fatalf("expected InfoLevel, got %v", logger.GetLevel())
	}
}

func TestComponentTagsSubLogger(t *testing.T) {
	logger := New(false)
	sub := Component(logger, "room")
	if sub == nil {
		t.Fatal("expected non-nil sub-logger")
	}
}

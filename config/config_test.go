package config

import (
	"testing"

	"go.mdsemu.io/redirector/pkg/models"
)

func TestEngineModeValid(t *testing.T) {
	conf := &Config{Mode: "discovery"}
	mode, err := conf.EngineMode()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if mode != models.ModeDiscovery {
		t.Errorf("Expected %v, got %v", models.ModeDiscovery, mode)
	}
}

func TestEngineModeInvalid(t *testing.T) {
	conf := &Config{Mode: "strict"}
	if _, err := conf.EngineMode(); err == nil {
		t.Errorf("Expected error, got nil")
	}
}

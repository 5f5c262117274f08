package cli

import (
	"context"
	"testing"

	"go.mdsemu.io/redirector/config"
	"go.mdsemu.io/redirector/pkg/models"
	"go.uber.org/zap"
)

func TestRegisteredCommands(t *testing.T) {
	for _, name := range []string{"attach", "status", "diagnose", "generate-config"} {
		if _, ok := Registered[name]; !ok {
			t.Errorf("Expected command %q to be registered", name)
		}
	}
}

func TestDiagnoseCasesCoverEveryVerdictClass(t *testing.T) {
	seen := map[models.VerdictKind]bool{}
	for _, tc := range diagnoseCases(models.ModeDiscovery, 1000) {
		seen[tc.want] = true
	}
	// Block is exercised separately through the discovery handshake.
	if !seen[models.VerdictAllow] || !seen[models.VerdictRedirect] {
		t.Errorf("Expected diagnose cases to cover allow and redirect, got %v", seen)
	}
}

func TestRootBuildsWithRegisteredCommands(t *testing.T) {
	logger := zap.NewNop()
	rootCmd := Root(context.Background(), logger)
	if rootCmd == nil {
		t.Fatalf("Expected root command, got nil")
	}
	for _, name := range []string{"attach", "diagnose"} {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected subcommand %q under root", name)
		}
	}
}

func TestAttachRejectsRegisterSelfInSimpleMode(t *testing.T) {
	conf := config.New()
	conf.Mode = string(models.ModeSimple)
	svc := &Services{Logger: zap.NewNop()}

	cmd := Attach(context.Background(), svc, conf)
	if err := cmd.Flags().Set("register-self", "true"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Errorf("Expected error for --register-self in simple mode")
	}
}

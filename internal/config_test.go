package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestExportConfig_TimeoutRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Export.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero export timeout should fail")
	}
	cfg.Export.Timeout = 100 * time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Fatal("sub-second export timeout should fail")
	}
}

func TestExportConfig_NegativeKeep(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Export.SnapshotKeep = -1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "export") {
		t.Fatalf("err = %v, want export error", err)
	}
}

func TestTrackerConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Tracker.RolloverCheck = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero rollover check disables the ticker and should pass: %v", err)
	}
	cfg.Tracker.NotesDebounce = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero notes debounce should fail")
	}
}

func TestHTTPConfig_Port(t *testing.T) {
	cfg := HTTPConfig{Port: 70000}
	if err := cfg.Validate(); err == nil {
		t.Fatal("out of range port should fail")
	}
	cfg.Port = 9090
	if got := cfg.Address(); got != ":9090" {
		t.Errorf("address = %q", got)
	}
}

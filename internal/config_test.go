package internal

import (
	"strings"
	"testing"

	"github.com/starford/noteml/internal/convert"
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

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Render.Mode() != convert.ModeReference {
		t.Errorf("default mode = %v, want reference", cfg.Render.Mode())
	}
}

func TestRenderConfig_Mode(t *testing.T) {
	cfg := RenderConfig{DefaultMode: "inline", AttachmentBaseURL: "/a/"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("inline mode should pass: %v", err)
	}
	if cfg.Mode() != convert.ModeInline {
		t.Errorf("mode = %v, want inline", cfg.Mode())
	}
}

func TestRenderConfig_EmptyModeDefaultsReference(t *testing.T) {
	cfg := RenderConfig{AttachmentBaseURL: "/a/"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default: %v", err)
	}
	if cfg.DefaultMode != "reference" {
		t.Errorf("mode = %q, want reference", cfg.DefaultMode)
	}
}

func TestRenderConfig_Invalid(t *testing.T) {
	for name, cfg := range map[string]RenderConfig{
		"mode":     {DefaultMode: "pdf", AttachmentBaseURL: "/a/"},
		"base url": {DefaultMode: "inline"},
		"size":     {AttachmentBaseURL: "/a/", MaxNoteBytes: -1},
		"workers":  {AttachmentBaseURL: "/a/", Workers: 1000},
	} {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestFullConfig_RenderValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Render.AttachmentBaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch render error")
	}
}

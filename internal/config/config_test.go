package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("AI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.AI.Model != "gemini-2.0-flash-exp" {
		t.Fatalf("unexpected model %q", cfg.AI.Model)
	}
	if cfg.AI.HistoryLimit != 10 {
		t.Fatalf("unexpected history limit %d", cfg.AI.HistoryLimit)
	}
	if !cfg.AI.WebSearch || cfg.AI.SearchTool != "googleSearch" {
		t.Fatalf("web search should default on with googleSearch")
	}
	if cfg.AI.Timeout != 0 {
		t.Fatalf("no timeout expected by default, got %s", cfg.AI.Timeout)
	}
	if cfg.AI.Enabled() {
		t.Fatalf("AI should be disabled without a key")
	}
	if cfg.Storage.Driver != "file" {
		t.Fatalf("unexpected storage driver %q", cfg.Storage.Driver)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AI_API_KEY", "secret")
	t.Setenv("AI_TIMEOUT", "30s")
	t.Setenv("AI_HISTORY_LIMIT", "0")
	t.Setenv("AI_EMOTION_TAG_FROM_CATEGORY", "true")
	t.Setenv("STORAGE_DRIVER", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if !cfg.AI.Enabled() {
		t.Fatalf("AI should be enabled with a key")
	}
	if cfg.AI.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.AI.Timeout)
	}
	if cfg.AI.HistoryLimit != 1 {
		t.Fatalf("history limit should be clamped to 1, got %d", cfg.AI.HistoryLimit)
	}
	if !cfg.AI.EmotionTagFromCategory {
		t.Fatalf("expected category tag mode")
	}
	if cfg.Storage.Slot().Driver != "sqlite" {
		t.Fatalf("unexpected storage driver %q", cfg.Storage.Slot().Driver)
	}
}

func TestLoadArkProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "ark")
	t.Setenv("ARK_MODEL", "doubao-pro")
	t.Setenv("ARK_ACCESS_KEY", "ak")
	t.Setenv("ARK_SECRET_KEY", "sk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.Model != "doubao-pro" {
		t.Fatalf("expected ark model override, got %q", cfg.AI.Model)
	}
	if !cfg.AI.Enabled() {
		t.Fatalf("ark with AK/SK should be enabled")
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "80 80")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestLoadInvalidBool(t *testing.T) {
	t.Setenv("AI_WEB_SEARCH", "maybe")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid bool")
	}
}

func TestNewChatModelRequiresCredentials(t *testing.T) {
	cfg := AIConfig{Provider: "openai", Model: "m"}
	if _, err := cfg.NewChatModel(t.Context()); err == nil {
		t.Fatal("expected error without api key")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Memory.MaxMessagesPerThread != 10 {
		t.Fatalf("expected 10 messages per thread, got %d", cfg.Memory.MaxMessagesPerThread)
	}
	if cfg.Memory.MaxConversationTokens != 4000 {
		t.Fatalf("expected 4000 max tokens, got %d", cfg.Memory.MaxConversationTokens)
	}
	if cfg.Memory.CompressionTriggerRatio != 0.8 {
		t.Fatalf("expected 0.8 trigger ratio, got %v", cfg.Memory.CompressionTriggerRatio)
	}
	if cfg.Agents.StepLimit != 10 {
		t.Fatalf("expected step limit 10, got %d", cfg.Agents.StepLimit)
	}
	if cfg.Agents.MessageTimeoutSecs != 60 {
		t.Fatalf("expected 60s message timeout, got %d", cfg.Agents.MessageTimeoutSecs)
	}
	if cfg.Database.TableName != "app_portfolio" {
		t.Fatalf("expected app_portfolio table, got %s", cfg.Database.TableName)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	l := &Loader{
		filePath: filepath.Join(t.TempDir(), "config.json"),
		homeDir:  t.TempDir(),
	}

	cfg, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Memory.MaxQueriesPerThread != 10 {
		t.Fatalf("expected default query cap, got %d", cfg.Memory.MaxQueriesPerThread)
	}
	if cfg.Database.Path == "" {
		t.Fatal("expected database path to be resolved")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("MESSAGE_TIMEOUT_S", "30")

	l := &Loader{
		filePath: filepath.Join(t.TempDir(), "config.json"),
		homeDir:  t.TempDir(),
	}

	cfg, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Fatalf("expected anthropic provider, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected env API key, got %s", cfg.LLM.APIKey)
	}
	if cfg.Agents.MessageTimeoutSecs != 30 {
		t.Fatalf("expected 30s timeout, got %d", cfg.Agents.MessageTimeoutSecs)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	l := &Loader{filePath: filepath.Join(dir, "config.json"), homeDir: dir}

	cfg := Defaults()
	cfg.Memory.MaxMessagesPerThread = 20
	if err := l.Save(cfg); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(l.FilePath()); err != nil {
		t.Fatal(err)
	}

	reloaded, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Memory.MaxMessagesPerThread != 20 {
		t.Fatalf("expected saved value 20, got %d", reloaded.Memory.MaxMessagesPerThread)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnvName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"loop.max_iterations", "GREENGATE_LOOP_MAX_ITERATIONS"},
		{"checks.timeout", "GREENGATE_CHECKS_TIMEOUT"},
		{"output.dir", "GREENGATE_OUTPUT_DIR"},
	}
	for _, tt := range tests {
		if got := EnvName(tt.key); got != tt.want {
			t.Errorf("EnvName(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestConfigSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("loop:\n  max_iterations: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GREENGATE_CHECKS_SHELL", "bash")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  string
		want KeySource
	}{
		{"loop.max_iterations", KeySourceConfig},
		{"checks.shell", KeySourceEnv},
		{"output.dir", KeySourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := cfg.Source(tt.key); got != tt.want {
				t.Errorf("Source(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestConfigKeysAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("loop:\n  max_iterations: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}

	keys := cfg.Keys()
	if len(keys) != 12 {
		t.Errorf("expected 12 keys, got %d: %v", len(keys), keys)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Errorf("keys not sorted: %v", keys)
		}
	}

	v, err := cfg.Get("loop.max_iterations")
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Errorf("expected 3, got %v (%T)", v, v)
	}

	if _, err := cfg.Get("nope.key"); err != ErrUnknownKey {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}

	if (&Config{}).Keys() != nil {
		t.Error("zero config should have no keys")
	}
}

package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, `
camera:
  type: "simulated"
profile:
  field_of_view_deg: 60
defaults:
  debug_level: 0
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { reloaded <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := `
camera:
  type: "simulated"
profile:
  field_of_view_deg: 60
defaults:
  debug_level: 3
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Defaults.DebugLevel != 3 {
			t.Errorf("reloaded debug_level = %d, want 3", cfg.Defaults.DebugLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

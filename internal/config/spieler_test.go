package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spieler.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := EmptySpielerConfig()

	if got := cfg.GetStableDuration(); got != time.Second {
		t.Errorf("GetStableDuration() = %v, want 1s", got)
	}
	if got := cfg.GetDropoutDuration(); got != 500*time.Millisecond {
		t.Errorf("GetDropoutDuration() = %v, want 500ms", got)
	}
	if got := cfg.GetForgetDuration(); got != 5*time.Second {
		t.Errorf("GetForgetDuration() = %v, want 5s", got)
	}
	if got := cfg.GetSplitRatio(); got != 0.5 {
		t.Errorf("GetSplitRatio() = %v, want 0.5", got)
	}
	if !cfg.GetMirror() {
		t.Error("GetMirror() = false, want true")
	}
	if got := cfg.GetCameraDevice(); got != "/dev/video0" {
		t.Errorf("GetCameraDevice() = %q, want /dev/video0", got)
	}
	if got := cfg.GetListenAddr(); got != ":8137" {
		t.Errorf("GetListenAddr() = %q, want :8137", got)
	}
	if got := cfg.GetDiscogsToken(); got != "" {
		t.Errorf("GetDiscogsToken() = %q, want empty", got)
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `{"stable_duration": "2s", "camera_fps": 15}`)

	cfg, err := LoadSpielerConfig(path)
	if err != nil {
		t.Fatalf("LoadSpielerConfig: %v", err)
	}
	if got := cfg.GetStableDuration(); got != 2*time.Second {
		t.Errorf("GetStableDuration() = %v, want 2s", got)
	}
	if got := cfg.GetCameraFPS(); got != 15 {
		t.Errorf("GetCameraFPS() = %v, want 15", got)
	}
	// Untouched fields keep their defaults.
	if got := cfg.GetDropoutDuration(); got != 500*time.Millisecond {
		t.Errorf("GetDropoutDuration() = %v, want default 500ms", got)
	}
	if got := cfg.GetResultTabCount(); got != 3 {
		t.Errorf("GetResultTabCount() = %v, want default 3", got)
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	if _, err := LoadSpielerConfig("spieler.yaml"); err == nil {
		t.Error("expected error for non-.json extension")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := LoadSpielerConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"stable_duration": `)
	if _, err := LoadSpielerConfig(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestValidateRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `{"dropout_duration": "fast"}`)
	if _, err := LoadSpielerConfig(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestValidateRejectsNegativeDuration(t *testing.T) {
	path := writeConfig(t, `{"forget_duration": "-1s"}`)
	if _, err := LoadSpielerConfig(path); err == nil {
		t.Error("expected error for negative duration")
	}
}

func TestValidateSplitRatioBounds(t *testing.T) {
	for _, bad := range []string{
		`{"split_ratio": 0}`,
		`{"split_ratio": 1}`,
		`{"split_ratio": -0.2}`,
		`{"split_ratio": 1.5}`,
	} {
		path := writeConfig(t, bad)
		if _, err := LoadSpielerConfig(path); err == nil {
			t.Errorf("config %s passed validation, want error", bad)
		}
	}

	path := writeConfig(t, `{"split_ratio": 0.42}`)
	cfg, err := LoadSpielerConfig(path)
	if err != nil {
		t.Fatalf("LoadSpielerConfig: %v", err)
	}
	if got := cfg.GetSplitRatio(); got != 0.42 {
		t.Errorf("GetSplitRatio() = %v, want 0.42", got)
	}
}

func TestValidateRejectsBadCameraGeometry(t *testing.T) {
	for _, bad := range []string{
		`{"camera_width": 0}`,
		`{"camera_height": -1}`,
		`{"camera_fps": 0}`,
	} {
		path := writeConfig(t, bad)
		if _, err := LoadSpielerConfig(path); err == nil {
			t.Errorf("config %s passed validation, want error", bad)
		}
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg, err := LoadSpielerConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Fatalf("LoadSpielerConfig(%s): %v", DefaultConfigPath, err)
	}

	empty := EmptySpielerConfig()
	if cfg.GetStableDuration() != empty.GetStableDuration() {
		t.Errorf("defaults file stable_duration %v != builtin %v", cfg.GetStableDuration(), empty.GetStableDuration())
	}
	if cfg.GetSplitRatio() != empty.GetSplitRatio() {
		t.Errorf("defaults file split_ratio %v != builtin %v", cfg.GetSplitRatio(), empty.GetSplitRatio())
	}
	if cfg.GetWindowClassHint() != empty.GetWindowClassHint() {
		t.Errorf("defaults file window_class_hint %q != builtin %q", cfg.GetWindowClassHint(), empty.GetWindowClassHint())
	}
	if cfg.GetListenAddr() != empty.GetListenAddr() {
		t.Errorf("defaults file listen_addr %q != builtin %q", cfg.GetListenAddr(), empty.GetListenAddr())
	}
}

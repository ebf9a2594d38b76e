package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file. It is the
// single source of truth for all default values.
const DefaultConfigPath = "config/spieler.defaults.json"

// SpielerConfig is the root configuration. All fields are pointers so that
// partial config files are safe: anything omitted falls back to the Get*
// defaults.
type SpielerConfig struct {
	// Tracker timing. Duration strings like "1s" or "500ms".
	StableDuration  *string `json:"stable_duration,omitempty"`
	DropoutDuration *string `json:"dropout_duration,omitempty"`
	ForgetDuration  *string `json:"forget_duration,omitempty"`

	// Frame geometry
	SplitRatio *float64 `json:"split_ratio,omitempty"` // left/right boundary as a fraction of frame width
	Mirror     *bool    `json:"mirror,omitempty"`

	// Camera
	CameraDevice *string `json:"camera_device,omitempty"`
	CameraWidth  *int    `json:"camera_width,omitempty"`
	CameraHeight *int    `json:"camera_height,omitempty"`
	CameraFPS    *int    `json:"camera_fps,omitempty"`

	// Detection
	TryHarder *bool `json:"try_harder,omitempty"`

	// Deck automation
	WindowClassHint *string `json:"window_class_hint,omitempty"`
	StepDelay       *string `json:"step_delay,omitempty"` // duration string
	SearchHotkey    *string `json:"search_hotkey,omitempty"`
	ResultTabCount  *int    `json:"result_tab_count,omitempty"`
	LeftDeckKey     *string `json:"left_deck_key,omitempty"`
	RightDeckKey    *string `json:"right_deck_key,omitempty"`

	// Service
	ListenAddr   *string `json:"listen_addr,omitempty"`
	DatabasePath *string `json:"database_path,omitempty"`

	// Cover art lookup (optional)
	DiscogsToken *string `json:"discogs_token,omitempty"`
}

// EmptySpielerConfig returns a SpielerConfig with all fields set to nil.
// Use LoadSpielerConfig to load actual values from a file.
func EmptySpielerConfig() *SpielerConfig {
	return &SpielerConfig{}
}

// LoadSpielerConfig loads a SpielerConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields omitted
// from the JSON retain their defaults.
func LoadSpielerConfig(path string) (*SpielerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySpielerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *SpielerConfig) Validate() error {
	durations := map[string]*string{
		"stable_duration":  c.StableDuration,
		"dropout_duration": c.DropoutDuration,
		"forget_duration":  c.ForgetDuration,
		"step_delay":       c.StepDelay,
	}
	for name, v := range durations {
		if v != nil && *v != "" {
			d, err := time.ParseDuration(*v)
			if err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
			if d < 0 {
				return fmt.Errorf("%s must be non-negative, got %s", name, d)
			}
		}
	}

	if c.SplitRatio != nil {
		if *c.SplitRatio <= 0 || *c.SplitRatio >= 1 {
			return fmt.Errorf("split_ratio must be between 0 and 1 exclusive, got %f", *c.SplitRatio)
		}
	}

	if c.CameraWidth != nil && *c.CameraWidth <= 0 {
		return fmt.Errorf("camera_width must be positive, got %d", *c.CameraWidth)
	}
	if c.CameraHeight != nil && *c.CameraHeight <= 0 {
		return fmt.Errorf("camera_height must be positive, got %d", *c.CameraHeight)
	}
	if c.CameraFPS != nil && *c.CameraFPS <= 0 {
		return fmt.Errorf("camera_fps must be positive, got %d", *c.CameraFPS)
	}

	if c.ResultTabCount != nil && *c.ResultTabCount < 0 {
		return fmt.Errorf("result_tab_count must be non-negative, got %d", *c.ResultTabCount)
	}

	return nil
}

func (c *SpielerConfig) duration(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback
	}
	return d
}

// GetStableDuration returns how long a code must persist before triggering.
func (c *SpielerConfig) GetStableDuration() time.Duration {
	return c.duration(c.StableDuration, time.Second)
}

// GetDropoutDuration returns the tolerated gap before the stability clock
// restarts.
func (c *SpielerConfig) GetDropoutDuration() time.Duration {
	return c.duration(c.DropoutDuration, 500*time.Millisecond)
}

// GetForgetDuration returns the absence after which a side is fully reset.
func (c *SpielerConfig) GetForgetDuration() time.Duration {
	return c.duration(c.ForgetDuration, 5*time.Second)
}

// GetStepDelay returns the pause between deck automation steps.
func (c *SpielerConfig) GetStepDelay() time.Duration {
	return c.duration(c.StepDelay, 500*time.Millisecond)
}

// GetSplitRatio returns the split_ratio value or the default.
func (c *SpielerConfig) GetSplitRatio() float64 {
	if c.SplitRatio == nil {
		return 0.5
	}
	return *c.SplitRatio
}

// GetMirror returns the mirror value or the default.
func (c *SpielerConfig) GetMirror() bool {
	if c.Mirror == nil {
		return true // webcams facing the operator read mirrored
	}
	return *c.Mirror
}

// GetCameraDevice returns the camera_device value or the default.
func (c *SpielerConfig) GetCameraDevice() string {
	if c.CameraDevice == nil {
		return "/dev/video0"
	}
	return *c.CameraDevice
}

// GetCameraWidth returns the camera_width value or the default.
func (c *SpielerConfig) GetCameraWidth() int {
	if c.CameraWidth == nil {
		return 1280
	}
	return *c.CameraWidth
}

// GetCameraHeight returns the camera_height value or the default.
func (c *SpielerConfig) GetCameraHeight() int {
	if c.CameraHeight == nil {
		return 720
	}
	return *c.CameraHeight
}

// GetCameraFPS returns the camera_fps value or the default.
func (c *SpielerConfig) GetCameraFPS() int {
	if c.CameraFPS == nil {
		return 30
	}
	return *c.CameraFPS
}

// GetTryHarder returns the try_harder value or the default.
func (c *SpielerConfig) GetTryHarder() bool {
	if c.TryHarder == nil {
		return true
	}
	return *c.TryHarder
}

// GetWindowClassHint returns the window_class_hint value or the default.
func (c *SpielerConfig) GetWindowClassHint() string {
	if c.WindowClassHint == nil {
		return "mixxx"
	}
	return *c.WindowClassHint
}

// GetSearchHotkey returns the search_hotkey value or the default.
func (c *SpielerConfig) GetSearchHotkey() string {
	if c.SearchHotkey == nil {
		return "ctrl+f"
	}
	return *c.SearchHotkey
}

// GetResultTabCount returns the result_tab_count value or the default.
func (c *SpielerConfig) GetResultTabCount() int {
	if c.ResultTabCount == nil {
		return 3
	}
	return *c.ResultTabCount
}

// GetLeftDeckKey returns the left_deck_key value or the default.
func (c *SpielerConfig) GetLeftDeckKey() string {
	if c.LeftDeckKey == nil {
		return "shift+Left"
	}
	return *c.LeftDeckKey
}

// GetRightDeckKey returns the right_deck_key value or the default.
func (c *SpielerConfig) GetRightDeckKey() string {
	if c.RightDeckKey == nil {
		return "shift+Right"
	}
	return *c.RightDeckKey
}

// GetListenAddr returns the listen_addr value or the default.
func (c *SpielerConfig) GetListenAddr() string {
	if c.ListenAddr == nil {
		return ":8137"
	}
	return *c.ListenAddr
}

// GetDatabasePath returns the database_path value or the default.
func (c *SpielerConfig) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return "spieler.db"
	}
	return *c.DatabasePath
}

// GetDiscogsToken returns the discogs_token value or the empty string.
func (c *SpielerConfig) GetDiscogsToken() string {
	if c.DiscogsToken == nil {
		return ""
	}
	return *c.DiscogsToken
}

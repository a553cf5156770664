package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Avataren/slidekiosk/internal/logger"
	"gopkg.in/yaml.v3"
)

// Page is one configured slideshow entry. Surfaces are created from the
// page list in order; the array position is the surface index for the
// lifetime of the active session.
type Page struct {
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// CaptureConfig controls the producer side of the pipeline.
type CaptureConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// FrameRate is the steady-state cap per surface; the minimum
	// inter-frame interval is 1000/FrameRate milliseconds.
	FrameRate int `json:"frame_rate" yaml:"frame_rate"`
	// AckTimeoutMs bounds how long a surface may sit unacknowledged
	// before a fallback frame is synthesized.
	AckTimeoutMs int `json:"ack_timeout_ms" yaml:"ack_timeout_ms"`
}

// TransportConfig models per-platform transport policy. A transport
// disabled here behaves like a platform rejection: the scheduler
// degrades past it and never retries.
type TransportConfig struct {
	AllowShared bool `json:"allow_shared" yaml:"allow_shared"`
	AllowCopied bool `json:"allow_copied" yaml:"allow_copied"`
	// QueueDepth is the per-channel delivery queue size on the bridge.
	QueueDepth int `json:"queue_depth" yaml:"queue_depth"`
}

// ConsumerConfig controls the consumer side of the pipeline.
type ConsumerConfig struct {
	// MaxTextureDim is the largest width or height the GPU image
	// resource may have; resolved frames beyond it are downscaled
	// proportionally.
	MaxTextureDim int `json:"max_texture_dim" yaml:"max_texture_dim"`
	// DevicePixelRatio of the consumer display, used when a frame
	// declares only a logical size.
	DevicePixelRatio float64 `json:"device_pixel_ratio" yaml:"device_pixel_ratio"`
}

// Config represents the application configuration
type Config struct {
	Pages      []Page          `json:"pages" yaml:"pages"`
	Capture    CaptureConfig   `json:"capture" yaml:"capture"`
	Transport  TransportConfig `json:"transport" yaml:"transport"`
	Consumer   ConsumerConfig  `json:"consumer" yaml:"consumer"`
	ServerPort int             `json:"server_port" yaml:"server_port"`
	LogLevel   string          `json:"log_level" yaml:"log_level"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager. When configFile is
// empty the default path under $HOME/.config/slidekiosk is used, and a
// default config file is written if none exists.
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "slidekiosk")
	actualConfigPath := filepath.Join(configDir, "config.yaml")
	if configFile != "" {
		actualConfigPath = configFile
	} else if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Int("pages", len(m.config.Pages)).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Pages: []Page{},
		Capture: CaptureConfig{
			Width:        1920,
			Height:       1080,
			FrameRate:    10,
			AckTimeoutMs: 5000,
		},
		Transport: TransportConfig{
			AllowShared: true,
			AllowCopied: true,
			QueueDepth:  4,
		},
		Consumer: ConsumerConfig{
			MaxTextureDim:    16384,
			DevicePixelRatio: 1.0,
		},
		ServerPort: 8080,
		LogLevel:   "info",
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Pages == nil {
		cfg.Pages = []Page{}
	}
	applyFloors(&cfg)

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// applyFloors backfills zero values from the defaults so a sparse
// config file still yields a usable pipeline.
func applyFloors(cfg *Config) {
	def := Defaults()
	if cfg.Capture.Width <= 0 {
		cfg.Capture.Width = def.Capture.Width
	}
	if cfg.Capture.Height <= 0 {
		cfg.Capture.Height = def.Capture.Height
	}
	if cfg.Capture.FrameRate <= 0 {
		cfg.Capture.FrameRate = def.Capture.FrameRate
	}
	if cfg.Capture.AckTimeoutMs <= 0 {
		cfg.Capture.AckTimeoutMs = def.Capture.AckTimeoutMs
	}
	if cfg.Transport.QueueDepth <= 0 {
		cfg.Transport.QueueDepth = def.Transport.QueueDepth
	}
	if cfg.Consumer.MaxTextureDim <= 0 {
		cfg.Consumer.MaxTextureDim = def.Consumer.MaxTextureDim
	}
	if cfg.Consumer.DevicePixelRatio <= 0 {
		cfg.Consumer.DevicePixelRatio = def.Consumer.DevicePixelRatio
	}
	if cfg.ServerPort <= 0 {
		cfg.ServerPort = def.ServerPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := *m.config
	cfg.Pages = append([]Page(nil), m.config.Pages...)
	return &cfg
}

// GetConfigPath returns the path of the loaded config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// SetPort overrides the server port (flag override)
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.ServerPort = port
}

// SetLogLevel overrides the log level (flag override)
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.LogLevel = level
}

// AddPage appends a page to the slideshow and persists the config.
func (m *Manager) AddPage(url, title string) error {
	m.mu.Lock()
	m.config.Pages = append(m.config.Pages, Page{URL: url, Title: title})
	m.mu.Unlock()
	return m.Save()
}

// RemovePage removes the page at the given index and persists the
// config. Out-of-range indices are ignored.
func (m *Manager) RemovePage(index int) error {
	m.mu.Lock()
	if index >= 0 && index < len(m.config.Pages) {
		m.config.Pages = append(m.config.Pages[:index], m.config.Pages[index+1:]...)
	}
	m.mu.Unlock()
	return m.Save()
}

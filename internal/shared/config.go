package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Analysis    AnalysisConfig    `toml:"analysis"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Pi      PiConfig      `toml:"pi"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// PiConfig contains Pi Network platform API credentials.
type PiConfig struct {
	APIKey  string `toml:"api_key"`
	Sandbox bool   `toml:"sandbox"`
	BaseURL string `toml:"base_url"` // overrides the sandbox/production host when set
}

// YouTubeConfig contains YouTube Data API credentials.
type YouTubeConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	RedirectPort   int      `toml:"redirect_port"`
	TLSCert        string   `toml:"tls_cert"`
	TLSKey         string   `toml:"tls_key"`
	SelfSigned     bool     `toml:"self_signed"`
	TrustedProxies []string `toml:"trusted_proxies"`
	WebBuildPath   string   `toml:"web_build_path"`
	LegalPath      string   `toml:"legal_path"`
	AllowedOrigins []string `toml:"allowed_origins"`
	MaxUploadMB    int64    `toml:"max_upload_mb"`
	RateLimit      float64  `toml:"rate_limit"`
	RateBurst      int      `toml:"rate_burst"`
}

// AnalysisConfig contains audio extraction and chord analysis settings.
type AnalysisConfig struct {
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
	TargetSampleRate   int    `toml:"target_sample_rate"`
	DailyLimit         int    `toml:"daily_limit"`
	YTDLPPath          string `toml:"ytdlp_path"`
	FFmpegPath         string `toml:"ffmpeg_path"`
	ServerURL          string `toml:"server_url"`
}

// Addr returns the host:port pair the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// TLSEnabled reports whether the server listens over HTTPS, either with the configured key pair or a
// generated self-signed certificate.
func (s ServerConfig) TLSEnabled() bool {
	return (s.TLSCert != "" && s.TLSKey != "") || s.SelfSigned
}

// MaxUploadBytes returns the request body limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return s.MaxUploadMB << 20
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrDefault loads the config at path, falling back to [DefaultConfig] when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

package backend

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Application configuration, read once at startup and never mutated.

const (
	DefaultMaxAudioBytes = 8 << 20 // 8 MiB
	DefaultConfigPath    = "config.ini"
)

type Config struct {
	Port           string
	UploadDir      string
	MaxAudioBytes  int64
	BodyLimitBytes int

	RecognitionURL       string
	RecognitionKey       string
	RecognitionKeyHeader string
	RecognitionField     string
	RecognitionTimeout   time.Duration

	YouTubeAPIURL     string
	TikTokAPIURL      string
	FacebookScraper   string
	FacebookFormField string
	UpstreamTimeout   time.Duration
	DownloadTimeout   time.Duration
	ProxyURL          string

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    string

	LogLevel  string
	LogFormat string
}

var defaultConfig = Config{
	Port:                 "3000",
	UploadDir:            "uploads",
	MaxAudioBytes:        DefaultMaxAudioBytes,
	BodyLimitBytes:       32 << 20,
	RecognitionKeyHeader: "X-API-Key",
	RecognitionField:     "audio",
	RecognitionTimeout:   60 * time.Second,
	TikTokAPIURL:         "https://www.tikwm.com/api/",
	FacebookScraper:      "https://fdown.net/download.php",
	FacebookFormField:    "URLz",
	UpstreamTimeout:      30 * time.Second,
	DownloadTimeout:      2 * time.Minute,
	RateLimitRPS:         5,
	RateLimitBurst:       20,
	CORSOrigins:          "*",
	LogLevel:             "info",
	LogFormat:            "text",
}

// GetDefaultConfig returns a copy of the built-in defaults.
func GetDefaultConfig() *Config {
	cfg := defaultConfig
	return &cfg
}

// GetConfigPath returns the INI file location, honouring SONGDETECT_CONFIG.
func GetConfigPath() string {
	if p := os.Getenv("SONGDETECT_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// LoadConfig loads configuration from the INI file at path on top of the
// defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := GetDefaultConfig()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	server := file.Section("server")
	cfg.Port = server.Key("port").MustString(cfg.Port)
	cfg.UploadDir = server.Key("upload_dir").MustString(cfg.UploadDir)
	cfg.MaxAudioBytes = server.Key("max_audio_bytes").MustInt64(cfg.MaxAudioBytes)
	cfg.BodyLimitBytes = server.Key("body_limit_bytes").MustInt(cfg.BodyLimitBytes)
	cfg.RateLimitRPS = server.Key("rate_limit_rps").MustFloat64(cfg.RateLimitRPS)
	cfg.RateLimitBurst = server.Key("rate_limit_burst").MustInt(cfg.RateLimitBurst)
	cfg.CORSOrigins = server.Key("cors_origins").MustString(cfg.CORSOrigins)
	cfg.LogLevel = server.Key("log_level").MustString(cfg.LogLevel)
	cfg.LogFormat = server.Key("log_format").MustString(cfg.LogFormat)

	rec := file.Section("recognition")
	cfg.RecognitionURL = rec.Key("url").MustString(cfg.RecognitionURL)
	cfg.RecognitionKey = rec.Key("api_key").MustString(cfg.RecognitionKey)
	cfg.RecognitionKeyHeader = rec.Key("key_header").MustString(cfg.RecognitionKeyHeader)
	cfg.RecognitionField = rec.Key("field").MustString(cfg.RecognitionField)
	cfg.RecognitionTimeout = rec.Key("timeout").MustDuration(cfg.RecognitionTimeout)

	up := file.Section("upstream")
	cfg.YouTubeAPIURL = up.Key("youtube_api_url").MustString(cfg.YouTubeAPIURL)
	cfg.TikTokAPIURL = up.Key("tiktok_api_url").MustString(cfg.TikTokAPIURL)
	cfg.FacebookScraper = up.Key("facebook_scraper_url").MustString(cfg.FacebookScraper)
	cfg.FacebookFormField = up.Key("facebook_form_field").MustString(cfg.FacebookFormField)
	cfg.UpstreamTimeout = up.Key("timeout").MustDuration(cfg.UpstreamTimeout)
	cfg.DownloadTimeout = up.Key("download_timeout").MustDuration(cfg.DownloadTimeout)
	cfg.ProxyURL = up.Key("proxy_url").MustString(cfg.ProxyURL)

	return cfg, nil
}

// LoadConfigWithEnv loads the INI file and then applies environment
// variable overrides. Environment always wins.
func LoadConfigWithEnv() (*Config, error) {
	cfg, err := LoadConfig(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("PORT", &c.Port)
	str("UPLOAD_DIR", &c.UploadDir)
	str("RECOGNITION_API_URL", &c.RecognitionURL)
	str("RECOGNITION_API_KEY", &c.RecognitionKey)
	str("RECOGNITION_API_KEY_HEADER", &c.RecognitionKeyHeader)
	str("RECOGNITION_API_FIELD", &c.RecognitionField)
	str("YOUTUBE_API_URL", &c.YouTubeAPIURL)
	str("TIKTOK_API_URL", &c.TikTokAPIURL)
	str("FACEBOOK_SCRAPER_URL", &c.FacebookScraper)
	str("FACEBOOK_FORM_FIELD", &c.FacebookFormField)
	str("PROXY_URL", &c.ProxyURL)
	str("CORS_ORIGINS", &c.CORSOrigins)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if v, ok := lookup("MAX_AUDIO_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_AUDIO_BYTES: %w", err)
		}
		c.MaxAudioBytes = n
	}
	if v, ok := lookup("BODY_LIMIT_BYTES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BODY_LIMIT_BYTES: %w", err)
		}
		c.BodyLimitBytes = n
	}
	if v, ok := lookup("RATE_LIMIT_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimitRPS = f
	}
	if v, ok := lookup("RATE_LIMIT_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimitBurst = n
	}

	durations := map[string]*time.Duration{
		"RECOGNITION_TIMEOUT": &c.RecognitionTimeout,
		"UPSTREAM_TIMEOUT":    &c.UpstreamTimeout,
		"DOWNLOAD_TIMEOUT":    &c.DownloadTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate rejects values the server cannot run with. A missing
// recognition key is deliberately not checked here; see FingerprintClient.
func (c *Config) Validate() error {
	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("max audio bytes must be positive, got %d", c.MaxAudioBytes)
	}
	if c.BodyLimitBytes > 0 && int64(c.BodyLimitBytes) < c.MaxAudioBytes {
		return fmt.Errorf("body limit (%d) must not be smaller than max audio bytes (%d)", c.BodyLimitBytes, c.MaxAudioBytes)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload directory must be set")
	}
	if err := ValidateUploadDir(c.UploadDir); err != nil {
		return err
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	return nil
}

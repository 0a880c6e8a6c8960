package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Matcher index modes accepted for Recognition.Index.
const (
	IndexLinear = "linear"
	IndexHNSW   = "hnsw"
)

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Camera      CameraConfig      `yaml:"camera"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Web         WebConfig         `yaml:"web"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Log         LogConfig         `yaml:"log"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`         // sqlite, postgres or mariadb (default sqlite)
	URL          string `yaml:"url"`            // file path for sqlite, DSN otherwise
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	URL      string `yaml:"url"`      // face service, defaults to http://localhost:8000
	Dim      int    `yaml:"dim"`      // defaults to 128
	Detector string `yaml:"detector"` // http or dlib
	ModelDir string `yaml:"model_dir"`
}

type RecognitionConfig struct {
	Threshold   float64 `yaml:"threshold"`    // max euclidean distance for a match
	Scale       int     `yaml:"scale"`        // linear downsample factor before detection
	MaxFPS      float64 `yaml:"max_fps"`      // 0 disables the limiter
	Index       string  `yaml:"index"`        // linear or hnsw
	Buffer      int     `yaml:"buffer"`       // frames buffered per stream consumer
	JPEGQuality int     `yaml:"jpeg_quality"` // overlay encoder quality
}

type CameraConfig struct {
	Source string `yaml:"source"` // /dev/videoN, http(s) MJPEG URL or image directory
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// ArchiveConfig configures the optional S3-compatible store for enrollment photos.
// Archiving is disabled when Endpoint is empty.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS; localhost is always allowed
}

type AttendanceConfig struct {
	Timezone string `yaml:"timezone"` // IANA name or fixed offset such as +05:30
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Defaults returns the configuration used when neither a file nor the environment set a value.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       "sqlite",
			URL:          "attendance_system.db",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Embedding: EmbeddingConfig{
			URL:      "http://localhost:8000",
			Dim:      128,
			Detector: "http",
		},
		Recognition: RecognitionConfig{
			Threshold:   0.6,
			Scale:       4,
			Index:       IndexLinear,
			Buffer:      2,
			JPEGQuality: 80,
		},
		Camera: CameraConfig{
			Source: "/dev/video0",
			Width:  640,
			Height: 480,
		},
		Archive: ArchiveConfig{
			Bucket: "enrollment-photos",
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Attendance: AttendanceConfig{
			Timezone: "+05:30",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envList reads a comma-separated environment variable.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load builds the configuration from defaults and the environment.
func Load() *Config {
	cfg := Defaults()
	applyEnv(cfg)
	return cfg
}

// LoadFile reads a YAML file over the defaults, then applies environment overrides.
// An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is from trusted flag
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would otherwise be replaced by a default or
// silently select a different behaviour.
func (c *Config) Validate() error {
	if c.Recognition.Threshold <= 0 {
		return fmt.Errorf("recognition threshold must be positive, got %g", c.Recognition.Threshold)
	}
	switch c.Recognition.Index {
	case IndexLinear, IndexHNSW:
	default:
		return fmt.Errorf("unknown matcher index %q (want %s or %s)", c.Recognition.Index, IndexLinear, IndexHNSW)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Embedding.URL = envString("EMBEDDING_URL", cfg.Embedding.URL)
	cfg.Embedding.Dim = envInt("EMBEDDING_DIM", cfg.Embedding.Dim)
	cfg.Embedding.Detector = envString("FACE_DETECTOR", cfg.Embedding.Detector)
	cfg.Embedding.ModelDir = envString("FACE_MODEL_DIR", cfg.Embedding.ModelDir)

	cfg.Recognition.Threshold = envFloat("MATCH_THRESHOLD", cfg.Recognition.Threshold)
	cfg.Recognition.Scale = envInt("RECOGNITION_SCALE", cfg.Recognition.Scale)
	cfg.Recognition.MaxFPS = envFloat("RECOGNITION_MAX_FPS", cfg.Recognition.MaxFPS)
	cfg.Recognition.Index = envString("MATCHER_INDEX", cfg.Recognition.Index)
	cfg.Recognition.Buffer = envInt("STREAM_BUFFER", cfg.Recognition.Buffer)
	cfg.Recognition.JPEGQuality = envInt("JPEG_QUALITY", cfg.Recognition.JPEGQuality)

	cfg.Camera.Source = envString("CAMERA_SOURCE", cfg.Camera.Source)
	cfg.Camera.Width = envInt("CAMERA_WIDTH", cfg.Camera.Width)
	cfg.Camera.Height = envInt("CAMERA_HEIGHT", cfg.Camera.Height)

	cfg.Archive.Endpoint = envString("ARCHIVE_ENDPOINT", cfg.Archive.Endpoint)
	cfg.Archive.AccessKey = envString("ARCHIVE_ACCESS_KEY", cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = envString("ARCHIVE_SECRET_KEY", cfg.Archive.SecretKey)
	cfg.Archive.Bucket = envString("ARCHIVE_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.UseSSL = envBool("ARCHIVE_USE_SSL", cfg.Archive.UseSSL)

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	cfg.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", cfg.Web.AllowedOrigins)

	cfg.Attendance.Timezone = envString("ATTENDANCE_TIMEZONE", cfg.Attendance.Timezone)

	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("LOG_FORMAT", cfg.Log.Format)
}

// Location resolves the attendance time zone.
func (c *AttendanceConfig) Location() (*time.Location, error) {
	return ParseLocation(c.Timezone)
}

// ParseLocation accepts an IANA zone name ("Asia/Kolkata", "UTC") or a fixed
// offset in the form +HH:MM / -HH:MM.
func ParseLocation(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty time zone")
	}
	if s[0] != '+' && s[0] != '-' {
		loc, err := time.LoadLocation(s)
		if err != nil {
			return nil, fmt.Errorf("loading time zone %q: %w", s, err)
		}
		return loc, nil
	}

	hh, mm, ok := strings.Cut(s[1:], ":")
	if !ok {
		return nil, fmt.Errorf("invalid offset %q, expected +HH:MM", s)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours > 14 {
		return nil, fmt.Errorf("invalid offset hours in %q", s)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return nil, fmt.Errorf("invalid offset minutes in %q", s)
	}

	offset := hours*3600 + minutes*60
	if s[0] == '-' {
		offset = -offset
	}
	return time.FixedZone("UTC"+s, offset), nil
}

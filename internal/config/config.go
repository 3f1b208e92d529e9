package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host         string        `mapstructure:"host" yaml:"host"`
		Port         int           `mapstructure:"port" yaml:"port"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
		CORSOrigins  []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
		SecureCookie bool          `mapstructure:"secure_cookie" yaml:"secure_cookie"`
		RateLimit    struct {
			RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
			Burst             int     `mapstructure:"burst" yaml:"burst"`
		} `mapstructure:"rate_limit" yaml:"rate_limit"`
	} `mapstructure:"server" yaml:"server"`

	Database struct {
		// sqlite, mysql or postgres
		Driver   string `mapstructure:"driver" yaml:"driver"`
		Host     string `mapstructure:"host" yaml:"host"`
		Port     int    `mapstructure:"port" yaml:"port"`
		User     string `mapstructure:"user" yaml:"user"`
		Password string `mapstructure:"password" yaml:"password"`
		Name     string `mapstructure:"name" yaml:"name"`
		SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
		Path     string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"database" yaml:"database"`

	Storage struct {
		// local or minio
		Backend      string `mapstructure:"backend" yaml:"backend"`
		Root         string `mapstructure:"root" yaml:"root"`
		UploadPrefix string `mapstructure:"upload_prefix" yaml:"upload_prefix"`
		ReportPrefix string `mapstructure:"report_prefix" yaml:"report_prefix"`
		MaxUploadMB  int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	} `mapstructure:"storage" yaml:"storage"`

	Minio struct {
		Endpoint   string `mapstructure:"endpoint" yaml:"endpoint"`
		AccessKey  string `mapstructure:"access_key" yaml:"access_key"`
		SecretKey  string `mapstructure:"secret_key" yaml:"secret_key"`
		BucketName string `mapstructure:"bucket_name" yaml:"bucket_name"`
		Region     string `mapstructure:"region" yaml:"region"`
		UseSSL     bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	} `mapstructure:"minio" yaml:"minio"`

	OpenAI struct {
		APIKey  string `mapstructure:"api_key" yaml:"api_key"`
		Model   string `mapstructure:"model" yaml:"model"`
		BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	} `mapstructure:"openai" yaml:"openai"`

	Analysis struct {
		TargetColumn string        `mapstructure:"target_column" yaml:"target_column"`
		TestEvery    int           `mapstructure:"test_every" yaml:"test_every"`
		Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"analysis" yaml:"analysis"`

	Session struct {
		TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
	} `mapstructure:"session" yaml:"session"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
	} `mapstructure:"log" yaml:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.secure_cookie", false)
	v.SetDefault("server.rate_limit.requests_per_second", 2.0)
	v.SetDefault("server.rate_limit.burst", 5)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "medreport")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/reports.db")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.root", "data")
	v.SetDefault("storage.upload_prefix", "uploads")
	v.SetDefault("storage.report_prefix", "reports")
	v.SetDefault("storage.max_upload_mb", 200)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket_name", "medreport")
	v.SetDefault("minio.region", "")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("analysis.target_column", "")
	v.SetDefault("analysis.test_every", 5)
	v.SetDefault("analysis.timeout", 2*time.Minute)

	v.SetDefault("session.ttl", 2*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads defaults, then the YAML file at path (optional when empty or missing),
// then MEDREPORT_* environment variables, e.g. MEDREPORT_DATABASE_DRIVER.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MEDREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite, mysql or postgres, got %q", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "local":
	case "minio":
		if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
			return fmt.Errorf("minio.endpoint and minio.bucket_name are required for the minio backend")
		}
	default:
		return fmt.Errorf("storage.backend must be local or minio, got %q", c.Storage.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Storage.MaxUploadMB <= 0 {
		return fmt.Errorf("storage.max_upload_mb must be positive")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes converts storage.max_upload_mb.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) << 20
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	port := c.Database.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	port := c.Database.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

// Dump renders the effective configuration as YAML with secrets masked.
func (c *Config) Dump() (string, error) {
	cp := *c
	cp.Database.Password = mask(cp.Database.Password)
	cp.Minio.AccessKey = mask(cp.Minio.AccessKey)
	cp.Minio.SecretKey = mask(cp.Minio.SecretKey)
	cp.OpenAI.APIKey = mask(cp.OpenAI.APIKey)
	b, err := yaml.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("marshal yaml: %w", err)
	}
	return string(b), nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

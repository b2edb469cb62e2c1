package config

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Sessions SessionsConfig `yaml:"sessions"`
	Identity IdentityConfig `yaml:"identity"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Quill"`
	Description string `yaml:"description" default:"A small multi-author publishing board"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
	// Idle time after which a client's workspace is dropped.
	ClientTTL      time.Duration `yaml:"client_ttl" default:"30m"`
	MaxUploadBytes int           `yaml:"max_upload_bytes" default:"10485760"`
	SecureCookies  bool          `yaml:"secure_cookies" default:"false"`
}

type DatabaseConfig struct {
	Path          string        `yaml:"path" default:"quill.db"`
	Compression   string        `yaml:"compression" default:"zstd"`
	WatchInterval time.Duration `yaml:"watch_interval" default:"2s"`
}

type StorageConfig struct {
	Backend string      `yaml:"backend" default:"fs"`
	FS      FSConfig    `yaml:"fs"`
	S3      S3Config    `yaml:"s3"`
	MinIO   MinIOConfig `yaml:"minio"`
}

type FSConfig struct {
	Dir     string `yaml:"dir" default:"data/assets"`
	BaseURL string `yaml:"base_url" default:"/assets"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint" default:""`
	Region    string `yaml:"region" default:"auto"`
	Bucket    string `yaml:"bucket" default:""`
	PublicURL string `yaml:"public_url" default:""`

	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" default:"localhost:9000"`
	Bucket    string `yaml:"bucket" default:"quill"`
	UseSSL    bool   `yaml:"use_ssl" default:"false"`
	PublicURL string `yaml:"public_url" default:""`

	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

type SessionsConfig struct {
	Backend string        `yaml:"backend" default:"sqlite"`
	TTL     time.Duration `yaml:"ttl" default:"168h"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr   string `yaml:"addr" default:"localhost:6379"`
	DB     int    `yaml:"db" default:"0"`
	Prefix string `yaml:"prefix" default:"quill:session:"`

	Password string `yaml:"-"`
}

type IdentityConfig struct {
	MinPasswordLength int `yaml:"min_password_length" default:"6"`
}

var AppConfig *Config

var (
	storageBackends     = []string{"fs", "s3", "minio"}
	sessionBackends     = []string{"sqlite", "redis"}
	compressionSettings = []string{"zstd", "gzip", "none"}
)

// Load reads the YAML file at path over the defaults and then applies
// secrets from the environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	if err != nil {
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	} else if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func LoadConfig(path string) error {
	config, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = config
	return nil
}

func (c *Config) Validate() error {
	if !slices.Contains(storageBackends, c.Storage.Backend) {
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if !slices.Contains(sessionBackends, c.Sessions.Backend) {
		return fmt.Errorf("unsupported session backend %q", c.Sessions.Backend)
	}
	if !slices.Contains(compressionSettings, c.Database.Compression) {
		return fmt.Errorf("unsupported compression %q", c.Database.Compression)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("sessions.ttl must be positive")
	}
	if c.Identity.MinPasswordLength < 1 {
		return fmt.Errorf("identity.min_password_length must be at least 1")
	}
	return nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch {
		case field.Type() == durationType:
			if val, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(val))
			}
		case field.Kind() == reflect.String:
			field.SetString(defaultValue)
		case field.Kind() == reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case field.Kind() == reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case field.Kind() == reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case field.Kind() == reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}

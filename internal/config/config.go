package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// HistoryLimit is how many recent messages a session receives on identify.
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`

	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// Bootstrap admin credentials, used only when no admin row exists yet.
	// Operational default; change the password after first deployment.
	AdminUsername string `mapstructure:"admin_username" yaml:"admin_username"`
	AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`

	// Avatar storage: "disk" serves files from UploadsDir, "s3" targets an
	// S3-compatible bucket.
	AvatarBackend     string `mapstructure:"avatar_backend" yaml:"avatar_backend"`
	UploadsDir        string `mapstructure:"uploads_dir" yaml:"uploads_dir"`
	S3Bucket          string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Endpoint        string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id" yaml:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key" yaml:"s3_secret_access_key"`

	// Token-bucket limits applied per client IP on register/login.
	AuthRatePerSecond float64 `mapstructure:"auth_rate_per_second" yaml:"auth_rate_per_second"`
	AuthBurst         int     `mapstructure:"auth_burst" yaml:"auth_burst"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "chat.db",
		HistoryLimit:      50,
		AllowedOrigins:    nil,
		JWTSecret:         "change-me-in-production",
		JWTIssuer:         "salachat",
		JWTAudience:       "salachat",
		JWTTTL:            24 * time.Hour,
		AdminUsername:     "admin",
		AdminPassword:     "admin",
		AvatarBackend:     "disk",
		UploadsDir:        "uploads",
		AuthRatePerSecond: 1,
		AuthBurst:         5,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
}

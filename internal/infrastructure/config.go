package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "PLAYERGW"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port"`                                      // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	Backend        struct {
		BaseURL string        `mapstructure:"base_url" json:"base_url" yaml:"base_url" validate:"required,url"` // course backend API root
		Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`                            // timeout for a single backend call
	} `mapstructure:"backend" json:"backend" yaml:"backend"`
	Auth struct {
		JWTMethod  string `mapstructure:"jwt_method" json:"jwt_method" yaml:"jwt_method" validate:"oneof=HS256 HS512 ES256"`
		JWTSecret  string `mapstructure:"jwt_secret" json:"jwt_secret" yaml:"jwt_secret" validate:"required"` // secret shared with the auth service
		RefreshURL string `mapstructure:"refresh_url" json:"refresh_url" yaml:"refresh_url"`                  // token refresh endpoint of the auth service
	} `mapstructure:"auth" json:"auth" yaml:"auth"`
	Session struct {
		IDLength        int           `mapstructure:"id_length" json:"id_length" yaml:"id_length" validate:"min=12"` // length of generated session IDs
		TTL             time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl"`                                     // idle session eviction delay
		CatalogCacheTTL time.Duration `mapstructure:"catalog_cache_ttl" json:"catalog_cache_ttl" yaml:"catalog_cache_ttl"`
	} `mapstructure:"session" json:"session" yaml:"session"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	KVStore struct {
		Enabled  bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"` // catalog caching is optional
		Host     string `mapstructure:"host" json:"host" yaml:"host"`          // kv host address
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`          // kv listen port
		Password string `mapstructure:"password" json:"password" yaml:"password"`
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init app config using viper
func InitConfig() (*AppConfig, error) {
	// app
	pflag.String("host", "", "binding address")
	pflag.String("app_id", "", "application identifier (required)")
	pflag.String("env", "development", "runtime environment, can be 'development' or 'production'")
	pflag.Int("port", 8081, "listening port")
	pflag.Duration("request_timeout", 30*time.Second, "inbound request timeout(m, s and h units are supported), eg.30s")

	// course backend
	pflag.String("backend.base_url", "", "course backend API root (required)")
	pflag.Duration("backend.timeout", 15*time.Second, "timeout for a single backend call")

	// auth
	pflag.String("auth.jwt_method", "HS256", "hash algorithm the auth service signs tokens with")
	pflag.String("auth.jwt_secret", "", "JWT secret shared with the auth service (required)")
	pflag.String("auth.refresh_url", "", "auth service endpoint used to refresh expired access tokens")

	// session
	pflag.Int("session.id_length", 24, "set length of generated viewing session IDs")
	pflag.Duration("session.ttl", 2*time.Hour, "evict viewing sessions idle for longer than this")
	pflag.Duration("session.catalog_cache_ttl", 10*time.Minute, "how long a fetched course catalog stays cached")

	// logging
	pflag.String("logging.level", "info", "logging level")
	pflag.String("logging.file_path", "", "log to file")

	// kv storage
	pflag.Bool("kv.enabled", false, "cache course catalogs in redis")
	pflag.String("kv.host", "127.0.0.1", "kv host")
	pflag.Int("kv.port", 6379, "kv server port")
	pflag.String("kv.password", "", "kv server password")

	// DevOp
	pflag.Bool("devop.apm", false, "enable apm metrics")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "-" || name == "" {
			name = fld.Tag.Get("yaml")
			if name == "-" || name == "" {
				return ""
			}
		}
		return name
	})
	err := validate.Struct(config)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		log.Fatalf("Failed to validate config: %s", err)
	}
	if err == nil {
		return nil
	}

	var msg []string
	for _, field := range err.(validator.ValidationErrors) {
		namespace := field.Namespace()
		fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
		switch field.Tag() {
		case "required":
			msg = append(msg, fmt.Sprintf("%s is required", fieldName))
		case "oneof":
			msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
		case "url":
			msg = append(msg, fmt.Sprintf("%s must be a valid URL", fieldName))
		case "min":
			msg = append(msg, fmt.Sprintf("%s must be at least %s", fieldName, field.Param()))
		}
	}
	if len(msg) > 0 {
		return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	ConfigPathFlag    = "config"
	DefaultConfigPath = "config.yaml"
	LogLevelFlag      = "level"

	DefaultServerHost  = "0.0.0.0"
	DefaultServerPort  = 8081
	DefaultMetricsPort = 9090

	KeySourceLocal  = "local"
	KeySourceAwsKms = "aws-kms"
	KeySourceGcpKms = "gcp-kms"

	AwsRegionEnvVar  = "AWS_REGION"
	DefaultAwsRegion = "us-west-2"
)

type (
	ConfigProvider interface {
		GetCodecConfig() CodecConfig
	}

	CodecConfig struct {
		Server         ServerConfig     `yaml:"server"`
		Metrics        MetricsConfig    `yaml:"metrics"`
		Encryption     EncryptionConfig `yaml:"encryption"`
		Authentication *AuthConfig      `yaml:"authentication,omitempty"`
	}

	ServerConfig struct {
		Host        string   `yaml:"host"`
		Port        int      `yaml:"port" validate:"min=0,max=65535"`
		CorsOrigins []string `yaml:"cors_origins,omitempty"`
	}

	MetricsConfig struct {
		Port int `yaml:"port" validate:"min=0,max=65535"`
	}

	EncryptionConfig struct {
		KeySource string `yaml:"key_source" validate:"oneof=local aws-kms gcp-kms"`
		// KeyID is stamped on encrypted payloads; defaults to the public key fingerprint
		KeyID      string        `yaml:"key_id,omitempty"`
		Algorithm  string        `yaml:"algorithm,omitempty"`
		Hash       string        `yaml:"hash,omitempty" validate:"omitempty,oneof=SHA-1 SHA-256 SHA-384 SHA-512"`
		PublicKey  *KeyRef       `yaml:"public_key,omitempty"`
		PrivateKey *KeyRef       `yaml:"private_key,omitempty"`
		AwsKms     *AwsKmsConfig `yaml:"aws_kms,omitempty" validate:"required_if=KeySource aws-kms"`
		GcpKms     *GcpKmsConfig `yaml:"gcp_kms,omitempty" validate:"required_if=KeySource gcp-kms"`
		Caching    CachingConfig `yaml:"caching"`
	}

	// KeyRef points at PEM key material. Exactly one field must be set.
	KeyRef struct {
		Value  string `yaml:"value,omitempty"`
		File   string `yaml:"file,omitempty"`
		EnvVar string `yaml:"env,omitempty"`
	}

	AwsKmsConfig struct {
		KeyID  string `yaml:"key_id" validate:"required"`
		Region string `yaml:"region,omitempty"`
	}

	GcpKmsConfig struct {
		KeyVersionName string `yaml:"key_version_name" validate:"required"`
	}

	CachingConfig struct {
		MaxCache int    `yaml:"max_cache,omitempty" validate:"gte=0"`
		MaxAge   string `yaml:"max_age,omitempty"`
	}

	AuthConfig struct {
		Type   string                 `yaml:"type" validate:"required,oneof=jwt spiffe"`
		Config map[string]interface{} `yaml:"config"`
	}

	cliConfigProvider struct {
		ctx         *cli.Context
		codecConfig CodecConfig
	}
)

func newConfigProvider(ctx *cli.Context) (ConfigProvider, error) {
	codecConfig, err := LoadConfig(ctx.String(ConfigPathFlag))
	if err != nil {
		return nil, err
	}

	return &cliConfigProvider{
		ctx:         ctx,
		codecConfig: codecConfig,
	}, nil
}

func (c *cliConfigProvider) GetCodecConfig() CodecConfig {
	return c.codecConfig
}

func LoadConfig(configFilePath string) (CodecConfig, error) {
	var config CodecConfig

	configFile, err := os.ReadFile(configFilePath)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(configFile, &config); err != nil {
		return config, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	config.ApplyDefaults()

	if err = config.Validate(); err != nil {
		return config, fmt.Errorf("failed to validate config: %w", err)
	}

	return config, nil
}

// ApplyDefaults fills in unset server, metrics and key source values
func (c *CodecConfig) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Encryption.KeySource == "" {
		c.Encryption.KeySource = KeySourceLocal
	}
}

func (c CodecConfig) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			var messages []string
			for _, fieldErr := range validationErrors {
				messages = append(messages, fmt.Sprintf("field %s failed on %s", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
		}
		return fmt.Errorf("validation error: %w", err)
	}

	return errors.Join(c.Encryption.Validate()...)
}

// Validate checks the rules struct tags cannot express: key references and durations
func (e EncryptionConfig) Validate() []error {
	var errs []error

	if e.KeySource == KeySourceLocal && e.PublicKey == nil && e.PrivateKey == nil {
		errs = append(errs, errors.New("local key source requires public_key and/or private_key"))
	}
	if e.KeySource != KeySourceLocal && e.PrivateKey != nil {
		errs = append(errs, fmt.Errorf("private_key cannot be used with key source %s", e.KeySource))
	}

	if e.PublicKey != nil {
		if err := e.PublicKey.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("public_key: %w", err))
		}
	}
	if e.PrivateKey != nil {
		if err := e.PrivateKey.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("private_key: %w", err))
		}
	}

	if _, err := e.Caching.MaxAgeDuration(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func (k KeyRef) Validate() error {
	set := 0
	for _, v := range []string{k.Value, k.File, k.EnvVar} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of value, file or env must be set")
	}
	return nil
}

// Resolve returns the PEM text the reference points at. A nil reference resolves to "".
func (k *KeyRef) Resolve() (string, error) {
	if k == nil {
		return "", nil
	}

	switch {
	case k.Value != "":
		return k.Value, nil
	case k.File != "":
		b, err := os.ReadFile(k.File)
		if err != nil {
			return "", fmt.Errorf("failed to read key file: %w", err)
		}
		return string(b), nil
	case k.EnvVar != "":
		v := os.Getenv(k.EnvVar)
		if v == "" {
			return "", fmt.Errorf("key environment variable %s is not set", k.EnvVar)
		}
		return v, nil
	default:
		return "", errors.New("empty key reference")
	}
}

// MaxAgeDuration parses MaxAge; an empty value means entries never expire
func (c CachingConfig) MaxAgeDuration() (time.Duration, error) {
	if c.MaxAge == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return 0, fmt.Errorf("invalid caching max_age %q: %w", c.MaxAge, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("caching max_age must be >= 0: %s", c.MaxAge)
	}
	return d, nil
}

// Enabled reports whether a key handle cache should be created
func (c CachingConfig) Enabled() bool {
	return c.MaxCache > 0
}

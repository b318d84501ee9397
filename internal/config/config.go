package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bstardust/takeout-geotag/internal/utils"
	"github.com/bstardust/takeout-geotag/pkg/common"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "TAKEOUT_GEOTAG"

// Config represents the application configuration
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Output   OutputConfig `mapstructure:"output"`
	S3       S3Config     `mapstructure:"s3"`
	Batch    BatchConfig  `mapstructure:"batch"`
}

// OutputConfig selects where rewritten files go when S3 is not used
type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	InPlace bool   `mapstructure:"in_place"`
}

// S3Config represents S3 connection configuration
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

// BatchConfig represents takeout processing options
type BatchConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	DryRun           bool          `mapstructure:"dry_run"`
	Resume           bool          `mapstructure:"resume"`
	JournalPath      string        `mapstructure:"journal"`
	SkipTagged       bool          `mapstructure:"skip_tagged"`
	PreserveMetadata bool          `mapstructure:"preserve_metadata"`
	MaxRetries       int           `mapstructure:"max_retries"`
	// Timeout bounds a whole run; zero means no limit
	Timeout          time.Duration `mapstructure:"timeout"`
}

// New creates a new configuration with default values
func New() *Config {
	return &Config{
		LogLevel: "info",
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Batch: BatchConfig{
			Concurrency:      4,
			Resume:           true,
			PreserveMetadata: true,
			MaxRetries:       3,
		},
	}
}

// defaults registers every key with viper so that environment variables are
// picked up by Unmarshal.
func defaults(v *viper.Viper) {
	d := New()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.in_place", d.Output.InPlace)
	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.bucket", d.S3.Bucket)
	v.SetDefault("s3.access_key", d.S3.AccessKey)
	v.SetDefault("s3.secret_key", d.S3.SecretKey)
	v.SetDefault("s3.use_ssl", d.S3.UseSSL)
	v.SetDefault("s3.prefix", d.S3.Prefix)
	v.SetDefault("batch.concurrency", d.Batch.Concurrency)
	v.SetDefault("batch.dry_run", d.Batch.DryRun)
	v.SetDefault("batch.resume", d.Batch.Resume)
	v.SetDefault("batch.journal", d.Batch.JournalPath)
	v.SetDefault("batch.skip_tagged", d.Batch.SkipTagged)
	v.SetDefault("batch.preserve_metadata", d.Batch.PreserveMetadata)
	v.SetDefault("batch.max_retries", d.Batch.MaxRetries)
	v.SetDefault("batch.timeout", d.Batch.Timeout)
}

// Load reads configuration from an optional file, the environment and any
// flags already bound to v. Later sources win: flags, then environment, then
// file, then defaults.
func Load(v *viper.Viper, file string) (*Config, error) {
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// An endpoint given as a URL decides TLS by its scheme
	host, secure, hasScheme, err := utils.ParseS3Endpoint(cfg.S3.Endpoint)
	if err != nil {
		return nil, common.NewConfigError(fmt.Sprintf("invalid S3 endpoint %q: %v", cfg.S3.Endpoint, err))
	}
	if hasScheme {
		cfg.S3.Endpoint = host
		cfg.S3.UseSSL = secure
	}
	return cfg, nil
}

// UseS3 reports whether results are uploaded to a bucket
func (c *Config) UseS3() bool {
	return c.S3.Bucket != ""
}

// Validate checks that exactly one destination is configured and that the
// settings for it are complete.
func (c *Config) Validate() error {
	var errs []error

	dests := 0
	if c.Output.Dir != "" {
		dests++
	}
	if c.Output.InPlace {
		dests++
	}
	if c.UseS3() {
		dests++
	}
	switch {
	case dests > 1:
		errs = append(errs, common.NewConfigError("choose only one of --output, --in-place and --s3-bucket"))
	case dests == 0 && !c.Batch.DryRun:
		errs = append(errs, common.NewConfigError("one of --output, --in-place or --s3-bucket is required"))
	}

	if c.UseS3() {
		if err := utils.ValidateS3BucketName(c.S3.Bucket); err != nil {
			errs = append(errs, common.NewConfigError(fmt.Sprintf("invalid bucket %q: %v", c.S3.Bucket, err)))
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, common.NewConfigError("S3 endpoint is required"))
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			errs = append(errs, common.NewConfigError("S3 access key and secret key are required"))
		}
	}

	if c.Batch.Concurrency < 1 {
		errs = append(errs, common.NewConfigError("concurrency must be at least 1"))
	}
	if c.Batch.MaxRetries < 0 {
		errs = append(errs, common.NewConfigError("max retries cannot be negative"))
	}
	return errors.Join(errs...)
}

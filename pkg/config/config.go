// Package config loads installer settings from defaults, an optional
// YAML file, PWINSTALL_* environment variables and command line flags,
// in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/budget"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/feeds"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/storage"
	cerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PWINSTALL_MOUNT_POINT.
const EnvPrefix = "PWINSTALL"

// DefaultConfigFile is read when present and no --config is given.
const DefaultConfigFile = "/etc/pwinstall.yaml"

// DefaultPackages is the Passwall package set, in install order.
var DefaultPackages = []string{
	"dnsmasq-full",
	"kmod-nft-socket",
	"kmod-nft-tproxy",
	"luci-app-passwall",
	"xray-core",
	"sing-box",
	"hysteria",
	"chinadns-ng",
	"ipt2socks",
	"tcping",
}

// Config is the complete set of installer settings.
type Config struct {
	Packages    []string `mapstructure:"packages" yaml:"packages" validate:"required,min=1,dive,pkgname"`
	FeedsFile   string   `mapstructure:"feeds_file" yaml:"feeds_file" validate:"required,startswith=/"`
	FeedBaseURL string   `mapstructure:"feed_base_url" yaml:"feed_base_url" validate:"required,url"`
	KeyURL      string   `mapstructure:"key_url" yaml:"key_url" validate:"required,url"`
	ReleaseFile string   `mapstructure:"release_file" yaml:"release_file" validate:"required,startswith=/"`
	MountPoint  string   `mapstructure:"mount_point" yaml:"mount_point" validate:"required,startswith=/"`
	Buffer      int64    `mapstructure:"buffer" yaml:"buffer" validate:"gte=0"`
	LogFile     string   `mapstructure:"log_file" yaml:"log_file" validate:"omitempty,startswith=/"`
	TraceFile   string   `mapstructure:"trace_file" yaml:"trace_file" validate:"omitempty,startswith=/"`
	AssumeYes   bool     `mapstructure:"assume_yes" yaml:"assume_yes"`
	DryRun      bool     `mapstructure:"dry_run" yaml:"dry_run"`
	Verbose     bool     `mapstructure:"verbose" yaml:"verbose"`
}

// flagKeys maps configuration keys to the flag names that override them.
var flagKeys = map[string]string{
	"assume_yes":  "yes",
	"dry_run":     "dry-run",
	"verbose":     "verbose",
	"mount_point": "mount-point",
	"packages":    "packages",
	"log_file":    "log-file",
	"trace_file":  "trace-file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("packages", DefaultPackages)
	v.SetDefault("feeds_file", feeds.DefaultFeedsFile)
	v.SetDefault("feed_base_url", feeds.DefaultBaseURL)
	v.SetDefault("key_url", feeds.DefaultKeyURL)
	v.SetDefault("release_file", feeds.DefaultReleaseFile)
	v.SetDefault("mount_point", storage.DefaultMountPoint)
	v.SetDefault("buffer", budget.DefaultBuffer)
	v.SetDefault("log_file", "")
	v.SetDefault("trace_file", "")
	v.SetDefault("assume_yes", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("verbose", false)
}

// Load resolves the configuration. file may be empty, in which case
// DefaultConfigFile is read if it exists. flags may be nil.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			file = DefaultConfigFile
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, pw_err.NewConfigurationError(fmt.Sprintf("cannot read config file %s", file), err)
		}
	}

	if err := bindFlags(v, flags); err != nil {
		return nil, pw_err.NewConfigurationError("cannot bind flags", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, pw_err.NewConfigurationError("cannot decode configuration", err)
	}
	if raw, ok := v.Get("packages").(string); ok {
		cfg.Packages = splitPackages(raw)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	var result error
	for key, name := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// splitPackages breaks a PWINSTALL_PACKAGES value, separated by commas or
// whitespace, into names. YAML lists and flags are already lists and are
// left alone so that a malformed entry reaches validation intact.
func splitPackages(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

var pkgNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.+_-]*$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("pkgname", func(fl validator.FieldLevel) bool {
		return pkgNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks every field and reports all violations at once.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !cerr.As(err, &verrs) {
		return pw_err.NewConfigurationError("invalid configuration", err)
	}
	var result *multierror.Error
	for _, fe := range verrs {
		result = multierror.Append(result, fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return pw_err.NewConfigurationError("invalid configuration", result.ErrorOrNil())
}

// Package config resolves process settings from flags and the environment.
// It is the only place environment variables are read.
package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/melih/rbuild/internal/core/domain"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names.
const (
	FlagBuildPeriod    = "build-period"
	FlagUpTimeout      = "up-timeout-period"
	FlagCommandTimeout = "command-timeout"
	FlagDocker         = "docker"
)

// Environment variables.
const (
	EnvBuildTTL       = "BUILD_TTL"
	EnvUpTimeout      = "UP_TIMEOUT_PERIOD"
	EnvCommandTimeout = "RBUILD_COMMAND_TIMEOUT"
	EnvDocker         = "RBUILD_DOCKER"
)

// Defaults.
const (
	DefaultBuildPeriod = 86400
	DefaultUpTimeout   = 60
	DefaultDocker      = "docker"
)

// Config holds the resolved settings of one invocation.
type Config struct {
	// BuildPeriod is the image TTL.
	BuildPeriod time.Duration

	// UpTimeout bounds the wait for services to become healthy.
	UpTimeout time.Duration

	// CommandTimeout bounds every runtime call except bring-up. Zero means
	// unbounded.
	CommandTimeout time.Duration

	// Docker is the container CLI binary.
	Docker string
}

var (
	errNegative = errors.New("must not be negative")
	errZero     = errors.New("must be at least 1")
)

type secondsSetting struct {
	key  string
	flag string
	env  string
	def  int

	// positive rejects zero.
	positive bool
}

var secondsSettings = []secondsSetting{
	{key: "build_period", flag: FlagBuildPeriod, env: EnvBuildTTL, def: DefaultBuildPeriod},
	{key: "up_timeout_period", flag: FlagUpTimeout, env: EnvUpTimeout, def: DefaultUpTimeout, positive: true},
	{key: "command_timeout", flag: FlagCommandTimeout, env: EnvCommandTimeout, def: 0},
}

// RegisterFlags adds the settings flags to fs. Flags are strings so that a
// malformed value fails the same way as a malformed environment variable.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagBuildPeriod, "", "time in seconds after which images are rebuilt (env "+EnvBuildTTL+", default 86400)")
	fs.String(FlagUpTimeout, "", "time in seconds to wait for services to become healthy, at least 1 (env "+EnvUpTimeout+", default 60)")
	fs.String(FlagCommandTimeout, "", "time in seconds bounding each runtime command except bring-up, 0 for none (env "+EnvCommandTimeout+")")
	fs.String(FlagDocker, "", "container CLI binary (env "+EnvDocker+", default docker)")
}

// Load resolves the settings. A flag set on the command line takes
// precedence over the environment, which takes precedence over the default.
// fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	for _, s := range secondsSettings {
		if err := bind(v, fs, s.key, s.flag, s.env); err != nil {
			return Config{}, err
		}
		v.SetDefault(s.key, strconv.Itoa(s.def))
	}
	if err := bind(v, fs, "docker", FlagDocker, EnvDocker); err != nil {
		return Config{}, err
	}
	v.SetDefault("docker", DefaultDocker)

	var durations [3]time.Duration
	for i, s := range secondsSettings {
		d, err := seconds(v, fs, s)
		if err != nil {
			return Config{}, err
		}
		durations[i] = d
	}

	docker := strings.TrimSpace(v.GetString("docker"))
	if docker == "" {
		docker = DefaultDocker
	}

	return Config{
		BuildPeriod:    durations[0],
		UpTimeout:      durations[1],
		CommandTimeout: durations[2],
		Docker:         docker,
	}, nil
}

func bind(v *viper.Viper, fs *pflag.FlagSet, key, flag, env string) error {
	if err := v.BindEnv(key, env); err != nil {
		return err
	}
	if fs == nil {
		return nil
	}
	if f := fs.Lookup(flag); f != nil {
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// seconds parses a non-negative integer number of seconds, or a positive
// one when the setting requires it. An empty value falls back to the
// default.
func seconds(v *viper.Viper, fs *pflag.FlagSet, s secondsSetting) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(s.key))
	if raw == "" {
		return time.Duration(s.def) * time.Second, nil
	}

	key := s.env
	if fs != nil && fs.Changed(s.flag) {
		key = "--" + s.flag
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ConfigurationError{Key: key, Value: raw, Err: err}
	}
	if n < 0 {
		return 0, &domain.ConfigurationError{Key: key, Value: raw, Err: errNegative}
	}
	if n == 0 && s.positive {
		return 0, &domain.ConfigurationError{Key: key, Value: raw, Err: errZero}
	}
	return time.Duration(n) * time.Second, nil
}

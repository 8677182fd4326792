package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env is the process configuration read from the environment.
type Env struct {
	// SignalingURL locates the rendezvous server, e.g. http://serverkey@127.0.0.1:7350.
	// There is deliberately no default.
	SignalingURL string `env:"CARDMESH_SIGNALING_URL,required,notEmpty"`
	ListenAddr   string `env:"CARDMESH_LISTEN_ADDR" envDefault:"0.0.0.0:0"`
	// AdvertiseHosts are offered to joiners in order; the first goes in the answer and
	// the rest follow as candidates.
	AdvertiseHosts []string `env:"CARDMESH_ADVERTISE_HOSTS" envSeparator:"," envDefault:"127.0.0.1"`
	DisplayName    string   `env:"CARDMESH_DISPLAY_NAME" envDefault:"player"`
	GameConfigPath string   `env:"CARDMESH_GAME_CONFIG"`
	LinkSecret     string   `env:"CARDMESH_LINK_SECRET"`
	LogLevel       string   `env:"CARDMESH_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses Env; a missing or empty signaling endpoint is a ConfigError.
func LoadEnv() (Env, error) {
	var cfg Env
	if err := ParseEnv(&cfg); err != nil {
		return Env{}, &ConfigError{Field: failingField(err), Err: err}
	}
	return cfg, nil
}

// failingField names the first variable env reported as missing or empty.
func failingField(err error) string {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return "environment"
	}
	for _, e := range agg.Errors {
		switch v := e.(type) {
		case env.EnvVarIsNotSetError:
			return v.Key
		case env.EmptyEnvVarError:
			return v.Key
		}
	}
	return "environment"
}

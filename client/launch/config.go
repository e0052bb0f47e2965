package launch

import (
	"fmt"

	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/kelseyhightower/envconfig"
)

type clientEnv struct {
	UnixSocket string `envconfig:"ADE_LAUNCHD_SOCK"`
}

// SocketPath returns the Unix socket path of ade-launchd
func SocketPath() (string, error) {
	var env clientEnv
	if err := envconfig.Process("", &env); err != nil {
		return "", fmt.Errorf("failed to process environment: %w", err)
	}
	return config.New(config.Env{UnixSocket: env.UnixSocket}).UnixSocket(), nil
}

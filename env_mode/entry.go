package env_mode

import (
	"os"
	"strings"
)

const ENV_MODE_KEY = "GO_ENV_MODE"

type ENV_MODE string

const (
	DevMode  ENV_MODE = "development"
	ProMode  ENV_MODE = "production"
	TestMode ENV_MODE = "test"
)

func ParseEnv(env string) ENV_MODE {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Mode reads GO_ENV_MODE on every call so tests can switch modes with t.Setenv.
func Mode() ENV_MODE {
	return ParseEnv(os.Getenv(ENV_MODE_KEY))
}

package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays TODOAUTH_* environment variables. Unset variables leave
// the current value untouched. Malformed values panic, as with JSON and flags.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}

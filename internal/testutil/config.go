package testutil

import (
	"testing"

	"github.com/lepinkainen/listado/internal/config"
	"github.com/spf13/viper"
)

// ResetConfig resets viper, registers listado defaults and points both
// SQLite files into the sandbox. Viper is reset again when the test completes.
func ResetConfig(t *testing.T, env *TestEnv) {
	t.Helper()

	viper.Reset()
	config.InitConfig()
	viper.Set("store.dbfile", env.StorePath())
	viper.Set("cache.dbfile", env.CachePath())

	t.Cleanup(viper.Reset)
}

// SetConfig applies key/value overrides on top of ResetConfig.
func SetConfig(t *testing.T, env *TestEnv, overrides map[string]any) {
	t.Helper()

	ResetConfig(t, env)
	for key, value := range overrides {
		viper.Set(key, value)
	}
}

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentaflow/dentaflow/pkg/config"
)

func TestLoad(t *testing.T) {
	type serverConfig struct {
		Addr  string `env:"TEST_SERVER_ADDR" envDefault:":8080"`
		Debug bool   `env:"TEST_SERVER_DEBUG" envDefault:"false"`
	}

	t.Run("defaults applied", func(t *testing.T) {
		var cfg serverConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":8080", cfg.Addr)
		assert.False(t, cfg.Debug)
	})

	t.Run("cached between calls", func(t *testing.T) {
		t.Setenv("TEST_SERVER_ADDR", ":9999")

		// The type was already parsed above, so the env change is invisible.
		var cfg serverConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":8080", cfg.Addr)
	})

	t.Run("required variable missing", func(t *testing.T) {
		type strictConfig struct {
			Secret string `env:"TEST_STRICT_SECRET,required"`
		}
		var cfg strictConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := config.Load[serverConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}

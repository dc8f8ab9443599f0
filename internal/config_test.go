package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, ,https://b.example")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.Equal("localhost:9090", config.Address())
	req.Equal(StoreBadger, config.StoreDriver)
	req.Equal("general", config.DefaultRoom)
	req.Equal(5*time.Second, config.StoreTimeout)
	req.Equal(3*time.Second, config.TypingTTL)
	req.Nil(config.LimitMessages)
	req.Equal([]string{"http://a.example", "https://b.example"}, config.Origins())
	req.NoError(config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		StoreDriver:          StoreBadger,
		ConnectionBufferSize: 1,
		MaxContentLength:     1,
		TypingTTL:            time.Second,
		TypingSweepInterval:  time.Second,
		StoreTimeout:         time.Second,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "sqlite" }},
		{name: "no buffer", mutate: func(c *Config) { c.ConnectionBufferSize = 0 }},
		{name: "no content", mutate: func(c *Config) { c.MaxContentLength = 0 }},
		{name: "no typing ttl", mutate: func(c *Config) { c.TypingTTL = 0 }},
		{name: "no store timeout", mutate: func(c *Config) { c.StoreTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			require.Error(t, config.Validate())
		})
	}
}

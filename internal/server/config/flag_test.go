package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		start       *Config
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-l", ":8080", "-a", "127.0.0.1:9090", "-d", "db", "-k", "redis:6379", "-s", "secret",
			"-t", "1", "-r", "3", "-m", "lenient", "-p", "10.0.0.1, 10.1.0.0/16",
		},
			start: &Config{},
			expected: &Config{
				EndpointAddrHTTP:             ":8080",
				EndpointAddrGRPC:             "127.0.0.1:9090",
				DatabaseDSN:                  "db",
				RedisAddr:                    "redis:6379",
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  1 * time.Minute,
				RefreshTokenValidityDuration: 3 * time.Minute,
				RefreshPolicy:                "lenient",
				TrustedProxies:               []string{"10.0.0.1", "10.1.0.0/16"},
			}},
		{name: "unknown flags are filtered, durations untouched", args: []string{"cmd", "-c", "x.json", "-z", "1"},
			start:    &Config{AccessTokenValidityDuration: 90 * time.Second, SecretKey: "keep"},
			expected: &Config{AccessTokenValidityDuration: 90 * time.Second, SecretKey: "keep"},
		},
		{name: "bad int panics", args: []string{"cmd", "-t", "soon"}, start: &Config{}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(tt.start) })
				assert.Empty(t, cmp.Diff(tt.start, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(tt.start) })
			}
		})
	}
}

package config

import "time"

// Config holds runtime settings for authctl.
//
// Fields:
//   - ServerEndpointAddr: host:port of the gophauth gRPC endpoint.
//   - RequestTimeout: deadline applied to each RPC.
//   - AccessToken / SessionToken: credentials sent as call metadata.
type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
	AccessToken        string
	SessionToken       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 5 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Gateway holds configuration for the HTTP gateway. Values come from the
// environment; a .env file may be loaded by the caller before decoding.
type Gateway struct {
	Port     uint16 `env:"GATEWAY_PORT,default=8080"`
	ChainRPC string `env:"CHAIN_RPC,default=http://127.0.0.1:26657"`

	LogLevel string `env:"LOG_LEVEL,default=info"`

	RequestTimeout  time.Duration `env:"GATEWAY_REQUEST_TIMEOUT,default=10s"`
	ShutdownTimeout time.Duration `env:"GATEWAY_SHUTDOWN_TIMEOUT,default=10s"`
}

func LoadGateway() (Gateway, error) {
	var cfg Gateway
	if err := envdecode.Decode(&cfg); err != nil {
		return Gateway{}, fmt.Errorf("decode env config: %w", err)
	}
	return cfg, nil
}

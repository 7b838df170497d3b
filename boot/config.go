// Package boot loads runner configuration from the environment.
package boot

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// WsURL is the chat backend websocket endpoint.
	WsURL string `env:"CHATKIT_WS_URL,default=ws://127.0.0.1:8000/ws"`
	// APIURL is the REST base for chat provisioning and history.
	APIURL string `env:"CHATKIT_API_URL,default=http://127.0.0.1:8000"`
	// IdentityDB is the path of the local identity database.
	IdentityDB string `env:"CHATKIT_IDENTITY_DB,default=chatkit-identity.db"`
	// Entitled permits unredacted contact-detail exchange.
	Entitled bool `env:"CHATKIT_ENTITLED,default=false"`
	// MetricsAddr, when set, serves prometheus metrics on this address.
	MetricsAddr string `env:"CHATKIT_METRICS_ADDR"`
}

func Load(ctx context.Context) (Config, error) {
	config := Config{}
	if err := envconfig.Process(ctx, &config); err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	return config, nil
}

package daraja

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/marketplace/internal/config"
)

// Module exposes merchant configuration and the Daraja client to the fx
// graph. Config is provided separately so the payment flow can assemble push
// payloads without reaching through the client.
var Module = fx.Provide(
	newConfig,
	newClient,
)

func newConfig(c *config.Config) Config {
	return Config{
		BaseURL:        c.MpesaBaseURL,
		ConsumerKey:    c.MpesaConsumerKey,
		ConsumerSecret: c.MpesaConsumerSecret,
		ShortCode:      c.MpesaShortCode,
		Passkey:        c.MpesaPasskey,
		CallbackURL:    c.MpesaCallbackURL,
		Timeout:        c.ProviderTimeout,
	}
}

func newClient(cfg Config, logger *slog.Logger) (Client, error) {
	return NewHTTPClient(cfg, logger)
}

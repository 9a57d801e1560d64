// Command activate registers the relay's callback URL with the provider
// and exits. Run it once per environment after deploying the relay.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	"github.com/goliatone/go-delivery-relay/lalamove"
	"github.com/goliatone/go-delivery-relay/signature"
	glog "github.com/goliatone/go-logger/glog"
)

func main() {
	_, logger := glog.Resolve("delivery-relay-activate", nil, nil)

	if err := run(logger); err != nil {
		logger.Error("webhook activation failed", "error", err)
		os.Exit(1)
	}
}

func run(logger core.Logger) error {
	callbackFlag := flag.String("callback-url", "", "callback URL to register (overrides RELAY_WEBHOOK_CALLBACK_URL)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	provider := core.NewCfgxConfigProvider(core.EnvRawConfigLoader{})
	cfg, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return err
	}

	callbackURL := strings.TrimSpace(*callbackFlag)
	if callbackURL == "" {
		callbackURL = strings.TrimSpace(cfg.Webhook.CallbackURL)
	}
	if callbackURL == "" {
		return core.NewConfigurationError("activate: callback url is required")
	}

	signer, err := signature.NewSigner(cfg.Secret, cfg.APIKey, cfg.Market)
	if err != nil {
		return err
	}

	baseURL := strings.TrimSpace(cfg.Provider.BaseURL)
	if baseURL == "" {
		baseURL = lalamove.BaseURLForEnvironment(cfg.Environment)
	}
	client, err := lalamove.NewClient(baseURL, signer, lalamove.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := client.ActivateWebhook(ctx, callbackURL); err != nil {
		return err
	}
	logger.Info("webhook registered", "callback_url", callbackURL, "base_url", baseURL)
	return nil
}

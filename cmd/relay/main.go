// Command relay runs the delivery webhook relay: it receives signed
// order-status callbacks, verifies them, and processes completed orders
// through the configured topology, queued or inline.
package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-delivery-relay/core"
	"github.com/goliatone/go-delivery-relay/lalamove"
	relaymigrations "github.com/goliatone/go-delivery-relay/migrations"
	"github.com/goliatone/go-delivery-relay/notify"
	relayqueue "github.com/goliatone/go-delivery-relay/queue"
	"github.com/goliatone/go-delivery-relay/relay"
	"github.com/goliatone/go-delivery-relay/signature"
	sqlstore "github.com/goliatone/go-delivery-relay/store/sql"
	"github.com/goliatone/go-delivery-relay/webhook"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	_, logger := glog.Resolve("delivery-relay", nil, nil)

	if err := run(logger); err != nil {
		logger.Error("relay exited", "error", err)
		os.Exit(1)
	}
}

func run(logger core.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	validator, err := signature.NewValidator(
		cfg.Secret,
		cfg.APIKey,
		http.MethodPost,
		cfg.Webhook.Path,
		cfg.Provider.ReplayWindow,
	)
	if err != nil {
		return err
	}
	signer, err := signature.NewSigner(cfg.Secret, cfg.APIKey, cfg.Market)
	if err != nil {
		return err
	}

	baseURL := strings.TrimSpace(cfg.Provider.BaseURL)
	if baseURL == "" {
		baseURL = lalamove.BaseURLForEnvironment(cfg.Environment)
	}
	client, err := lalamove.NewClient(baseURL, signer,
		lalamove.WithFetchTimeout(cfg.Provider.FetchTimeout),
		lalamove.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	notifier := notify.NewChatNotifier(cfg.Notify.ChatWebhookURL, cfg.Notify.Timezone,
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithLogger(logger),
	)

	processorOptions := []relay.Option{
		relay.WithNotifier(notifier),
		relay.WithLogger(logger),
	}
	receiverOptions := []webhook.Option{
		webhook.WithNotifier(notifier),
		webhook.WithLogger(logger),
	}

	if cfg.Database.Enabled {
		stores, cleanup, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		processorOptions = append(processorOptions, relay.WithOrderStore(stores.OrderStore()))
		receiverOptions = append(receiverOptions, webhook.WithEventLedger(stores.EventLedger()))
	}

	processor, err := relay.NewProcessor(client, processorOptions...)
	if err != nil {
		return err
	}

	dispatcher, startConsumer, err := buildDispatcher(cfg, processor, logger)
	if err != nil {
		return err
	}
	if startConsumer != nil {
		go startConsumer(ctx)
	}

	receiver, err := webhook.NewReceiver(validator, dispatcher, receiverOptions...)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Webhook.Path, receiver)
	server := &http.Server{
		Addr:              cfg.Webhook.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening",
			"addr", cfg.Webhook.ListenAddr,
			"path", cfg.Webhook.Path,
			"process_mode", cfg.Webhook.ProcessMode,
			"environment", cfg.Environment,
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig(ctx context.Context) (core.Config, error) {
	provider := core.NewCfgxConfigProvider(core.EnvRawConfigLoader{})
	loaded, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return core.Config{}, err
	}
	return core.GoOptionsResolver{}.Resolve(core.DefaultConfig(), loaded, core.Config{})
}

// buildDispatcher selects the topology. Queue mode returns a consumer
// start function; inline mode does not.
func buildDispatcher(cfg core.Config, processor core.Processor, logger core.Logger) (webhook.Dispatcher, func(context.Context), error) {
	switch strings.TrimSpace(cfg.Webhook.ProcessMode) {
	case core.ProcessModeInline:
		dispatcher, err := webhook.NewInlineDispatcher(processor, logger)
		return dispatcher, nil, err
	case core.ProcessModeQueue:
		memory := relayqueue.NewMemory(0)
		publisher, err := relayqueue.NewPublisher(memory, logger)
		if err != nil {
			return nil, nil, err
		}
		dispatcher, err := webhook.NewQueueDispatcher(publisher, logger)
		if err != nil {
			return nil, nil, err
		}
		consumer, err := relayqueue.NewConsumer(memory, processor,
			relayqueue.WithConsumerLogger(logger),
			relayqueue.WithRetryPolicy(relayqueue.RetryPolicy{
				MaxAttempts:     cfg.Queue.MaxAttempts,
				RetryDelay:      cfg.Queue.RetryDelay,
				DeadLetterOnMax: cfg.Queue.DeadLetterOnMax,
			}),
		)
		if err != nil {
			return nil, nil, err
		}
		return dispatcher, func(ctx context.Context) {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "error", err)
			}
		}, nil
	default:
		return nil, nil, core.NewConfigurationError("main: unsupported process mode")
	}
}

type persistenceConfig struct {
	cfg core.Config
}

func (p persistenceConfig) GetDebug() bool {
	return p.cfg.Environment != core.EnvironmentProduction
}

func (p persistenceConfig) GetDriver() string {
	return p.cfg.Database.Driver
}

func (p persistenceConfig) GetServer() string {
	return p.cfg.Database.DSN
}

func (p persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (p persistenceConfig) GetOtelIdentifier() string {
	return p.cfg.ServiceName
}

func openStores(ctx context.Context, cfg core.Config, logger core.Logger) (*sqlstore.Stores, func(), error) {
	driver := strings.TrimSpace(cfg.Database.Driver)
	var dialect schema.Dialect
	var migrationDialect string
	switch driver {
	case "sqlite3":
		dialect = sqlitedialect.New()
		migrationDialect = relaymigrations.DialectSQLite
	default:
		driver = "postgres"
		dialect = pgdialect.New()
		migrationDialect = relaymigrations.DialectPostgres
	}

	sqlDB, err := sql.Open(driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, core.NewPersistenceError(err, "main: open database", nil)
	}

	client, err := persistence.New(persistenceConfig{cfg: cfg}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, core.NewPersistenceError(err, "main: new persistence client", nil)
	}

	_, err = relaymigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrationDialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, relaymigrations.WithValidationTargets(migrationDialect))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, core.NewPersistenceError(err, "main: migrate database", nil)
	}

	cacheService, err := repositorycache.NewCacheService(repositorycache.DefaultConfig())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	stores, err := sqlstore.NewStores(client, sqlstore.WithOrderCache(cacheService))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("persistence ready", "driver", driver)
	return stores, func() {
		_ = client.Close()
	}, nil
}

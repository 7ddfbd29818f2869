package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/hotel-ops/internal/assign"
	"github.com/nhle/hotel-ops/internal/board"
	"github.com/nhle/hotel-ops/internal/credential"
	"github.com/nhle/hotel-ops/internal/logging"
	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/notify"
	"github.com/nhle/hotel-ops/internal/recurrence"
	"github.com/nhle/hotel-ops/internal/reminder"
	"github.com/nhle/hotel-ops/internal/store"
)

// runtime is the set of components shared by the long-running commands.
type runtime struct {
	cfg        *model.AppConfig
	logger     *zap.SugaredLogger
	store      *store.SQLStore
	engine     *recurrence.Engine
	notifier   notify.Notifier
	dispatcher *notify.Dispatcher
}

// open loads configuration and builds the store, the recurrence engine
// and the notification dispatcher. console receives human-readable log
// lines and may be nil.
func open(configPath string, console io.Writer) (*runtime, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log, console)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(cfg.Reminder)
	if err != nil {
		return nil, err
	}

	s, err := store.NewSQLStore(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		engine:   engine,
		notifier: notify.Nop{},
	}

	sink, err := buildSink(cfg, credential.NewVault(), logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	if sink != nil {
		rt.dispatcher = notify.NewDispatcher(sink, s, logger, notify.OptionsFromConfig(cfg.Notify))
		rt.dispatcher.Start()
		rt.notifier = rt.dispatcher
	} else {
		logger.Infow("No notification sink configured, events are dropped")
	}

	return rt, nil
}

func newEngine(cfg model.ReminderConfig) (*recurrence.Engine, error) {
	var loc *time.Location
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading reminder timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	engine := recurrence.NewEngine(loc)
	if cfg.DefaultTime == "" {
		return engine, nil
	}
	engine, err := engine.WithDefaultTime(cfg.DefaultTime)
	if err != nil {
		return nil, fmt.Errorf("reminder.default_time: %w", err)
	}
	return engine, nil
}

// buildSink assembles the configured sinks. It returns nil when none is
// configured.
func buildSink(cfg *model.AppConfig, vault *credential.Vault, logger *zap.SugaredLogger) (notify.Sink, error) {
	var sinks notify.MultiSink

	if cfg.Webhook.URL != "" {
		token, err := vault.Resolve(cfg.Webhook.CredentialKey, credential.EnvWebhookToken)
		if err != nil {
			// Send without a token rather than disable the sink.
			logger.Warnw("Webhook token unavailable, sending without authorization", "error", err)
		}
		timeout := time.Duration(cfg.Webhook.TimeoutSec) * time.Second
		sinks = append(sinks, notify.NewWebhookSink(cfg.Webhook.URL, token, timeout))
	}

	if cfg.Mailbox.Enabled {
		password, err := vault.Resolve(cfg.Mailbox.CredentialKey, credential.EnvMailboxPassword)
		if err != nil {
			return nil, fmt.Errorf("mailbox password: %w", err)
		}
		sinks = append(sinks, notify.NewMailboxSink(cfg.Mailbox, password))
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

func (rt *runtime) coordinator() *board.Coordinator {
	return board.NewCoordinator(rt.store, rt.notifier, nil, rt.logger)
}

func (rt *runtime) merger() *assign.Merger {
	return assign.NewMerger(rt.store, rt.notifier, rt.logger, rt.cfg.Assign.MaxRetries)
}

func (rt *runtime) reminders() *reminder.Buffer {
	return reminder.NewBuffer(rt.store, rt.engine, rt.notifier, rt.logger)
}

// close drains queued notifications and closes the store.
func (rt *runtime) close() {
	if rt.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := rt.dispatcher.Stop(ctx); err != nil {
			rt.logger.Warnw("Notification queue not drained", "error", err)
		}
		cancel()
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Warnw("Closing store", "error", err)
	}
	_ = rt.logger.Sync()
}

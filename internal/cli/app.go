package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pipeboard/internal/board"
	"github.com/mesh-intelligence/pipeboard/internal/dynamo"
	"github.com/mesh-intelligence/pipeboard/internal/logging"
	"github.com/mesh-intelligence/pipeboard/internal/persist"
	"github.com/mesh-intelligence/pipeboard/internal/postgres"
	"github.com/mesh-intelligence/pipeboard/internal/queue"
	"github.com/mesh-intelligence/pipeboard/pkg/sqlite"
	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// closeTimeout bounds the final flush when a command exits.
const closeTimeout = 15 * time.Second

// app is a loaded board with its storage and change publisher attached.
type app struct {
	cfg        types.Config
	logger     *zap.Logger
	backend    types.Backend
	broker     *queue.Conn
	dispatcher *persist.Dispatcher
	engine     *board.Engine
}

// openApp loads the configuration, attaches the configured backend, restores
// the board and wires the dispatcher between the engine and its sinks. The
// caller must call close.
func openApp(ctx context.Context) (*app, error) {
	configDir, err := resolveConfigDir()
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, sysError(err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, sysError(err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.attach(ctx); err != nil {
		a.close(ctx)
		return nil, sysError(err)
	}
	return a, nil
}

func (a *app) attach(ctx context.Context) error {
	backend, err := newBackend(a.cfg.Backend)
	if err != nil {
		return err
	}
	if err := backend.Attach(a.cfg); err != nil {
		return fmt.Errorf("attach %s backend: %w", a.cfg.Backend, err)
	}
	a.backend = backend
	if d, ok := backend.(*dynamo.Backend); ok {
		if err := d.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure dynamodb table: %w", err)
		}
	}

	opts := []persist.Option{
		persist.WithStore(backend),
		persist.WithStrategy(a.cfg.GetSyncStrategy()),
		persist.WithBatchInterval(time.Duration(a.cfg.GetBatchInterval()) * time.Second),
		persist.WithLogger(a.logger),
	}
	if a.cfg.AMQP.URL != "" {
		broker, err := queue.Dial(a.cfg.AMQP.URL)
		if err != nil {
			return err
		}
		a.broker = broker
		opts = append(opts, persist.WithNotifier(queue.NewPublisher(broker.Channel(), a.logger)))
	}
	a.dispatcher = persist.NewDispatcher(opts...)

	snap, err := backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	engineOpts := []board.Option{
		board.WithPersister(a.dispatcher),
		board.WithLogger(a.logger),
		board.WithPlaceholderProduct(a.cfg.GetPlaceholderProduct()),
	}
	if snap == nil {
		a.engine, err = board.New(a.cfg.Buckets, engineOpts...)
	} else {
		a.engine, err = board.Restore(a.cfg.Buckets, *snap, engineOpts...)
	}
	if err != nil {
		return fmt.Errorf("restore board: %w", err)
	}
	loaded := a.engine.Snapshot()
	a.logger.Debug("board loaded",
		zap.String("backend", a.cfg.Backend),
		zap.Int64("revision", loaded.Revision),
		zap.Int("records", loaded.Len()))
	return nil
}

// close flushes pending snapshots and changes, then releases the broker and
// the backend. The first error is returned.
func (a *app) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	var errs []error
	if a.dispatcher != nil {
		errs = append(errs, a.dispatcher.Close(ctx))
	}
	if a.broker != nil {
		errs = append(errs, a.broker.Close())
	}
	if a.backend != nil {
		errs = append(errs, a.backend.Detach())
	}
	a.logger.Sync()
	return errors.Join(errs...)
}

// newBackend returns a detached backend for the configured name.
func newBackend(name string) (types.Backend, error) {
	switch name {
	case types.BackendSQLite:
		return sqlite.NewBackend(), nil
	case types.BackendPostgres:
		return postgres.NewBackend(), nil
	case types.BackendDynamoDB:
		return dynamo.NewBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, name)
	}
}

// pinger is implemented by backends that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// withApp opens the app, runs fn and closes the app. A close failure is a
// system error even when fn succeeded, since it means a mutation was not
// persisted.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.close(ctx); err != nil && runErr == nil {
		return sysError(fmt.Errorf("persist board: %w", err))
	}
	return runErr
}

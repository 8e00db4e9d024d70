package injector

import (
	"github.com/google/wire"

	"github.com/csicar/tables/internal/config"
	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/blocks/library"
	"github.com/csicar/tables/internal/core/eval"
	"github.com/csicar/tables/internal/core/events/bus"
	"github.com/csicar/tables/internal/core/observability/log"
	"github.com/csicar/tables/internal/core/storage"
	"github.com/csicar/tables/internal/editor"
)

// App bundles what the command line works with.
type App struct {
	Config    config.Config
	Logger    log.Log
	Evaluator eval.Evaluator
	Block     editor.DocumentBlock
	Workspace *editor.DocumentWorkspace
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideStorage,
	ProvideEventBus,
	ProvideEvaluator,
	library.New,
	ProvideDocumentBlock,
	editor.NewDocumentWorkspace,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg config.Config) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger, err := log.New(level)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideStorage(cfg config.Config, logger log.Log) (storage.Storage, func(), error) {
	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("storage opened", log.String("backend", cfg.Storage.Backend), log.String("path", cfg.Storage.Path))
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage failed", log.Error(err))
		}
	}, nil
}

func ProvideEventBus(logger log.Log) bus.EventBus {
	b := bus.New()
	b.AddObserver(editor.NewEventLogger(logger))
	return b
}

func ProvideEvaluator() eval.Evaluator {
	return eval.Default
}

func ProvideDocumentBlock(cfg config.Config, reg *block.Registry, ev eval.Evaluator) editor.DocumentBlock {
	return editor.NewDocumentBlock(reg, ev, cfg.History.Divisor, nil)
}

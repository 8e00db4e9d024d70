package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csicar/tables/internal/config"
	"github.com/csicar/tables/internal/core/storage"
	"github.com/csicar/tables/internal/editor"
	"github.com/csicar/tables/internal/injector"
)

// Options select the configuration and the document a command works on.
type Options struct {
	ConfigPath string
	Key        string
}

func AddDocumentArgs(cmd *cobra.Command, o *Options) {
	cmd.PersistentFlags().StringVar(&o.ConfigPath, "config", "",
		"Path to a YAML configuration file.")
	cmd.PersistentFlags().StringVar(&o.Key, "key", "",
		"Document to work on, overriding storage.key from the configuration.")
}

func (o *Options) Config() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Key != "" {
		if err := storage.ValidateKey(o.Key); err != nil {
			return config.Config{}, fmt.Errorf("--key %q: %w", o.Key, err)
		}
		cfg.Storage.Key = o.Key
	}
	return cfg, nil
}

// Open builds the application and loads the selected document. The returned
// cleanup closes the storage and must be called once the command is done.
func (o *Options) Open(ctx context.Context) (*injector.App, *editor.DocumentSession, func(), error) {
	cfg, err := o.Config()
	if err != nil {
		return nil, nil, nil, err
	}
	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	key := cfg.Storage.Key
	if err := app.Workspace.Open(ctx, key); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	s, ok := app.Workspace.Session(key)
	if !ok {
		cleanup()
		return nil, nil, nil, fmt.Errorf("document %s was not opened", key)
	}
	return app, s, cleanup, nil
}

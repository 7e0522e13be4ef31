package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsearch/internal/app"
	"github.com/hupe1980/vecsearch/internal/config"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "vecsearch.yaml"

type rootOptions struct {
	configPath string
	collection string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "vecsearch",
		Short:         "Product-quantized vector search",
		Long:          `vecsearch trains product quantizers, builds inverted indexes over text embeddings and serves nearest-neighbor queries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", DefaultConfigPath, "config file path")
	cmd.PersistentFlags().StringVar(&opts.collection, "collection", "", "collection name (default: first configured)")

	cmd.AddCommand(
		newTrainCmd(opts),
		newBuildCmd(opts),
		newSearchCmd(opts),
		newServeCmd(opts),
		newPublishCmd(opts),
		newFetchCmd(opts),
		newSnapshotsCmd(opts),
		newPruneCmd(opts),
	)

	return cmd
}

// open loads the config and builds the App. Logs go to the command's
// stderr.
func (o *rootOptions) open(cmd *cobra.Command) (*app.App, config.CollectionConfig, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, config.CollectionConfig{}, err
	}

	col, err := cfg.Collection(o.collection)
	if err != nil {
		return nil, config.CollectionConfig{}, err
	}

	a, err := app.New(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, config.CollectionConfig{}, fmt.Errorf("failed to initialize: %w", err)
	}

	return a, col, nil
}

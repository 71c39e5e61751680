package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skshohagmiah/flindb/internal/config"
	"github.com/skshohagmiah/flindb/internal/db"
	"github.com/skshohagmiah/flindb/pkg/flindb"
)

var version = "dev"

// app carries what every subcommand needs after flag parsing.
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

// open loads the named database through the configured adapter.
func (a *app) open(ctx context.Context, name string) (*db.Database, error) {
	adapter, err := openAdapter(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	d, err := flindb.Open(ctx, name, flindb.WithAdapter(adapter), flindb.WithLogger(a.log))
	if err != nil {
		if c, ok := adapter.(interface{ Close() error }); ok {
			c.Close()
		}
		return nil, err
	}
	return d, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "flindb",
		Short:             "Embeddable document store",
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (yaml, json or toml)")

	root.AddCommand(
		a.shellCmd(),
		a.findCmd(),
		a.importCmd(),
		a.statsCmd(),
		a.validateCmd(),
		a.benchCmd(),
		&cobra.Command{
			Use:               "version",
			Short:             "Print the version",
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "flindb %s\n", version)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/config"
	"github.com/simonvc/rentledger/internal/logger"
)

var (
	flagConfig string
	flagServer string
	flagDB     string

	cfg config.Config
	zlog *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rentledger",
	Short: "Double-entry ledger for student accommodation",
	Long: "Accrues rent, admin fees and deposits per lease, allocates payments oldest month first, " +
		"and reconstructs income statements and balance sheets from the journal.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		// flags win over file and environment
		if cmd.Flags().Changed("server") || cfg.Server.URL == "" {
			cfg.Server.URL = flagServer
		}
		if cmd.Flags().Changed("db") || cfg.DB.Path == "" {
			cfg.DB.Path = flagDB
		}
		zlog, err = logger.New(cfg.Mode)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if zlog != nil {
			_ = zlog.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ./rentledger.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8888", "Server address")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "rentledger.db", "SQLite database path")
}

func newClient() *client.Client {
	return client.New(cfg.Server.URL)
}

func Execute() error {
	return rootCmd.Execute()
}

// Package cmd wires the recipewallet CLI: importing recipes from links,
// browsing and mutating the local wallet, and syncing it with the cloud
// copy.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rishavrajjain/recipewallet/internal/cloud"
	"github.com/rishavrajjain/recipewallet/internal/config"
	"github.com/rishavrajjain/recipewallet/internal/importer"
	"github.com/rishavrajjain/recipewallet/internal/localstore"
	"github.com/rishavrajjain/recipewallet/internal/logger"
	"github.com/rishavrajjain/recipewallet/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "recipewallet",
	Short: "Import, store, and sync recipes from links",
	Long: `Recipewallet keeps a local wallet of recipes, collections, and a shopping
list, imports recipes from external links through the extraction service,
and mirrors the wallet to a per-user cloud document.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .recipewallet.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".recipewallet")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("RECIPEWALLET")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// session bundles everything a command needs to work with the wallet.
type session struct {
	cfg    config.Config
	log    *logger.Logger
	local  *localstore.Store
	remote *cloud.Client
	coord  *store.Coordinator
}

// openSession builds the coordinator stack from configuration and starts the
// background cloud merge.
func openSession(ctx context.Context) (*session, error) {
	cfg := config.Load()

	level := logger.LevelNormal
	if cfg.Verbose {
		level = logger.LevelVerbose
	}
	log := logger.New(level, os.Stderr)

	local, err := localstore.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	identity := cloud.IdentityFunc(func() string { return cfg.UserID })
	cloudClient, err := cloud.NewClient(cfg.CloudURL, identity, log)
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("build cloud client: %w", err)
	}

	importClient := importer.NewClient(cfg.ServiceURL, log, importer.WithTimeout(cfg.ImportTimeout))

	coord, err := store.New(ctx, local, cloudClient, importClient, cfg.PrefsPath, log)
	if err != nil {
		cloudClient.Close()
		local.Close()
		return nil, fmt.Errorf("build coordinator: %w", err)
	}
	coord.Start(ctx)

	return &session{cfg: cfg, log: log, local: local, remote: cloudClient, coord: coord}, nil
}

// close releases the session's resources.
func (s *session) close() {
	s.remote.Close()
	s.local.Close()
}

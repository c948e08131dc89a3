// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/cr0nhq/cr0n/internal/config"
	"github.com/cr0nhq/cr0n/internal/logging"
	"github.com/cr0nhq/cr0n/internal/xdg"
)

// serviceName identifies this binary in logs.
const serviceName = "cr0n"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the cr0n CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cr0n",
		Short: "cr0n - accounts, sites and billing for the cr0n dashboard",
		Long: `cr0n serves the account API behind the cr0n dashboard: sessions,
password reset, email verification, sites, plan limits and billing.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/cr0n/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())

	return cmd
}

// loadConfig layers defaults, the config file, CR0N_* variables and flags,
// then sets up the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = xdg.ConfigFile()
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	return cfg, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"snapshoot-sync/config"
	"snapshoot-sync/internal/app"
	"snapshoot-sync/internal/transport/httpdto"
	"snapshoot-sync/pkg/logger"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "snapshootd",
	Short:         "Offline-first cache and sync engine for the Snapshoot client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Probe connectivity, sync on reconnect and serve the status API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, log, err := open(ctx)
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		return a.Run(ctx)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass and print its report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, log, err := open(ctx)
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		a.Monitor.Check(ctx)
		rep := a.Sync.Sync(ctx)
		return printJSON(httpdto.NewSyncResponse(rep))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the session and pending queue depths",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, log, err := open(ctx)
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		depths, err := a.Sync.Depths(ctx)
		if err != nil {
			return err
		}
		st := httpdto.StatusResponse{Online: a.Monitor.Check(ctx), Queues: depths}
		if claims, err := a.Session.Claims(ctx); err == nil {
			st.Authenticated = true
			st.UserID = claims.UserID
			if !claims.ExpiresAt.IsZero() {
				st.TokenExpiresAt = &claims.ExpiresAt
			}
		}
		return printJSON(st)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email-or-username> <password>",
	Short: "Sign in and store the session token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, log, err := open(ctx)
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		u, err := a.Session.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s (%s)\n", u.Username, u.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, log, err := open(ctx)
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		return a.Session.Logout(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"YAML config file. Environment variables override it; without it only the environment is read.")
	rootCmd.AddCommand(runCmd, syncCmd, statusCmd, loginCmd, logoutCmd)
}

func open(ctx context.Context) (*app.App, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.New(cfg.App.Mode)
	logger.SetGlobalLogger(log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

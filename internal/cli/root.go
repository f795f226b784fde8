// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package cli implements hackatimectl, the operator command line for
// running passes and apportionment without the HTTP server.
package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
	"github.com/shiba-arcade/hackatime-sync/internal/sync"
)

// Syncer runs sync passes.
type Syncer interface {
	TriggerSyncWithOptions(ctx context.Context, opts sync.PassOptions) (*models.SyncSummary, error)
}

// RunLister reads run history, newest first.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

// StatsFetcher reads a user's tracked projects.
type StatsFetcher interface {
	UserStats(ctx context.Context, slackID string) (*models.UserStats, error)
}

// Apportioner runs post apportionment for one user.
type Apportioner interface {
	RunForSlackID(ctx context.Context, slackID string, opts sync.PassOptions) (*models.ApportionReport, error)
	RunForEmail(ctx context.Context, email string, opts sync.PassOptions) (*models.ApportionReport, error)
}

// Services are the collaborators a command needs. Close releases them.
type Services struct {
	Sync      Syncer
	Runs      RunLister
	Stats     StatsFetcher
	Apportion Apportioner
	Close     func() error
}

// StoreAccess is how a command uses the run store. The server holds the
// store's directory lock while it runs, so only commands that need
// history touch it.
type StoreAccess string

const (
	StoreNone      StoreAccess = "none"
	StoreReadOnly  StoreAccess = "read-only"
	StoreReadWrite StoreAccess = "read-write"
)

// storeAnnotation carries a command's StoreAccess.
const storeAnnotation = "run-store"

// Request tells a Factory what the command about to run needs.
type Request struct {
	Store StoreAccess

	// ServerURL is asked for run history when the store is locked.
	ServerURL string
}

// Factory builds Services from a loaded configuration.
type Factory func(cfg *config.Config, req Request) (*Services, error)

// Options wires the root command. Zero fields take production defaults.
type Options struct {
	LoadConfig func() (*config.Config, error)
	Build      Factory
}

type rootState struct {
	opts       Options
	configPath string
	logLevel   string
	serverURL  string
	services   *Services
}

// NewRootCommand returns the hackatimectl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	if opts.Build == nil {
		opts.Build = BuildServices
	}
	st := &rootState{opts: opts}

	root := &cobra.Command{
		Use:   "hackatimectl",
		Short: "Operate the Shiba Arcade Hackatime sync",
		Long: `hackatimectl runs Hackatime reconciliation passes and post
apportionment directly against Airtable, using the same configuration
as the server (config file, .env and environment variables).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: st.setup,
	}

	root.PersistentFlags().StringVar(&st.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "Log level override (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&st.serverURL, "server", "", "Server base URL for run history (default http://127.0.0.1:<port>)")

	for _, sub := range []*cobra.Command{
		newSyncCommand(st),
		newProjectsCommand(st),
		newApportionCommand(st),
		newRunsCommand(st),
	} {
		sub.RunE = st.withTeardown(sub.RunE)
		root.AddCommand(sub)
	}
	return root
}

func (st *rootState) setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if st.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, st.configPath); err != nil {
			return err
		}
	}

	cfg, err := st.opts.LoadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if st.logLevel != "" {
		level = st.logLevel
	}
	logging.Init(logging.Config{
		Level:     level,
		Format:    "console",
		Timestamp: true,
		Output:    cmd.ErrOrStderr(),
	})

	req := Request{Store: StoreNone, ServerURL: st.serverURL}
	if access, ok := cmd.Annotations[storeAnnotation]; ok {
		req.Store = StoreAccess(access)
	}
	if req.ServerURL == "" {
		req.ServerURL = "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.Port))
	}

	services, err := st.opts.Build(cfg, req)
	if err != nil {
		return err
	}
	st.services = services
	return nil
}

// withTeardown closes the services after run, whether or not it failed.
func (st *rootState) withTeardown(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		return errors.Join(err, st.teardown())
	}
}

func (st *rootState) teardown() error {
	if st.services == nil || st.services.Close == nil {
		return nil
	}
	err := st.services.Close()
	st.services = nil
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

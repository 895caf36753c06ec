// Package cli provides the chatbot command line.
//
// Commands run against the package-level Services, which the root command
// wires from the configuration before any subcommand runs.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/config/file"
	"github.com/ihssane2002/chatbot-entreprise/internal/bootstrap"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Services are what commands run against.
type Services struct {
	Settings domain.Settings

	Sync      driving.SyncEngine
	Retriever driving.Retriever
	Query     driving.QueryService
	Ingest    driving.IngestService

	Reports     driven.ReportStore
	Corpus      driven.Corpus
	VectorIndex driven.VectorIndex

	// Warnings lists optional services that failed to start.
	Warnings []string
}

// Bootstrap levels, set per command in the "bootstrap" annotation.
const (
	bootstrapAnnotation = "bootstrap"

	// bootstrapNone skips wiring entirely: the command only needs the config store.
	bootstrapNone = "none"
	// bootstrapStorage wires storage without AI services.
	bootstrapStorage = "storage"
	// bootstrapWorker wires everything but the sync publisher.
	bootstrapWorker = "worker"
)

var (
	svc         *Services
	configStore driven.ConfigStore
	app         *bootstrap.App

	verbose   bool
	configDir string
	envFile   string
	promptDir string
)

var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "Question answering over PDF reports",
	Long: `chatbot keeps a knowledge base in step with a directory of PDF reports
and answers questions about them with retrieval-augmented generation.

Reports are extracted page by page, split into chunks, embedded into a
vector index and their tables merged for keyword lookup. Only reports whose
content changed since the last sync are processed again.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "print debug and progress logs")
	flags.StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.chatbot)")
	flags.StringVar(&envFile, "env-file", "", "environment file to load (default .env)")
	flags.StringVar(&promptDir, "prompt-dir", "", "prompt template directory (default <config-dir>/prompts)")
}

// SetServices replaces the command services and returns a function
// restoring the previous ones.
func SetServices(s *Services) func() {
	old := svc
	svc = s
	return func() { svc = old }
}

// setup loads configuration and wires the services the command needs.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if err := file.LoadEnvFile(envFile); err != nil {
		return err
	}
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	configStore = store

	level := bootstrapLevel(cmd)
	if level == bootstrapNone || svc != nil {
		return nil
	}

	settings, err := file.LoadSettings(store)
	if err != nil {
		return err
	}

	var opts []bootstrap.Option
	if promptDir != "" {
		opts = append(opts, bootstrap.WithPromptDir(promptDir))
	}
	switch level {
	case bootstrapStorage:
		opts = append(opts, bootstrap.WithoutAI(), bootstrap.WithoutQueue())
	case bootstrapWorker:
		opts = append(opts, bootstrap.WithoutQueue())
	}

	a, err := bootstrap.New(cmd.Context(), settings, opts...)
	if err != nil {
		return err
	}
	app = a
	svc = servicesFromApp(a)

	for _, w := range a.Warnings {
		cmd.PrintErrf("Warning: %s\n", w)
	}
	return nil
}

// bootstrapLevel reads the command annotation. Cobra's generated help and
// completion commands need nothing wired.
func bootstrapLevel(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return bootstrapNone
		}
	}
	return cmd.Annotations[bootstrapAnnotation]
}

func servicesFromApp(a *bootstrap.App) *Services {
	s := &Services{
		Settings:    a.Settings,
		Sync:        a.Sync,
		Retriever:   a.Retriever,
		Query:       a.Query,
		Ingest:      a.Ingest,
		Reports:     a.Stores.Reports,
		Corpus:      a.Corpus,
		VectorIndex: a.VectorIndex,
		Warnings:    a.Warnings,
	}
	return s
}

// teardown releases what setup opened.
func teardown() error {
	if app == nil {
		return nil
	}
	err := app.Close()
	app = nil
	svc = nil
	return err
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if cerr := teardown(); cerr != nil {
		logger.Warn("closing: %v", cerr)
	}
	return err
}

// requireServices returns the wired services or a configuration error.
func requireServices() (*Services, error) {
	if svc == nil {
		return nil, errors.New("services not configured")
	}
	return svc, nil
}

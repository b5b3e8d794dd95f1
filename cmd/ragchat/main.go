// Command ragchat serves conversational question answering over uploaded
// documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/ragchat-go/internal/config"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/app"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
)

type rootFlags struct {
	config string
	models string
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "ragchat",
		Short:        "Chat with your documents",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().StringVar(&flags.models, "models", "", "provider registry file (default from config, then "+config.DefaultModelsPath+")")

	root.AddCommand(newServeCmd(flags), newChatCmd(flags), newProvidersCmd(flags))
	return root
}

// load reads the app config and provider registry named by flags.
func (f *rootFlags) load() (*config.Config, *config.Registry, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, nil, err
	}
	modelsPath := f.models
	if modelsPath == "" {
		modelsPath = cfg.Models.Path
	}
	reg, err := config.LoadProviders(modelsPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, reg, nil
}

// start builds the logger and application for a command.
func (f *rootFlags) start(ctx context.Context, override func(*config.Config)) (*app.App, *logging.GologLogger, error) {
	cfg, reg, err := f.load()
	if err != nil {
		return nil, nil, err
	}
	if override != nil {
		override(cfg)
	}

	log, err := logging.New(logging.Options{
		Level: logging.ParseLevel(cfg.Log.Level),
		Dir:   cfg.Log.Dir,
		File:  cfg.Log.File,
	})
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(ctx, cfg, reg, log)
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	return a, log, nil
}

func shutdown(a *app.App, log *logging.GologLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		log.Warn("shutdown: %v", err)
	}
	log.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printErr(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

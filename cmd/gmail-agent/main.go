// gmail-agent answers plain-language questions about a Gmail mailbox and
// manages drafts, over MCP or from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hal9000y/gmail-agent/internal/config"
)

const (
	exitCodeError       = 1
	exitCodeInterrupted = 130
)

var (
	cfgFile string
	envFile string
	logFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "gmail-agent",
	Short:         "Search a Gmail mailbox with a local LLM and manage drafts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cfgFile, envFile)
		if err != nil {
			return fmt.Errorf("config.Load failed: %w", err)
		}
		if logFile == "" {
			logFile = cfg.Server.LogFile
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to env file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file (otherwise logs go to stdout, or nowhere with --stdio)")

	rootCmd.AddCommand(serveCmd, askCmd)
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return exitCodeInterrupted
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCodeError
	}

	return 0
}

func setupLogger(quiet bool, logFile string) (func(), error) {
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("os.OpenFile failed: %w", err)
		}
		log.SetOutput(f)

		return func() {
			if err := f.Close(); err != nil {
				log.Println(fmt.Errorf("f.Close failed: %w", err))
			}
		}, nil
	}

	if quiet {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stdout)
	}

	return func() {}, nil
}

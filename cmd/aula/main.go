package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/aula/internal/aula/app"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// skipApp marks commands that run without a client session.
const skipApp = "skip-app"

var (
	configPath   string
	outputFormat string

	application *app.Application
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	closeApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// closeApplication runs after every command, including failed ones, so the
// token store file is always released.
func closeApplication() {
	if application == nil {
		return
	}
	_ = application.Close()
	application = nil
}

var rootCmd = &cobra.Command{
	Use:   "aula",
	Short: "Aula - command line client for the virtual classroom",
	Long: `Aula talks to the virtual classroom backend: sign in once, then list
courses, take exams, read messages and follow notifications live.

The session is kept in a local token store and refreshed transparently.
Configuration comes from the environment (AULA_*) or a YAML file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipApp] == "true" {
			return nil
		}

		cfg, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}

		application, err = app.New(cfg, Version)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Aula version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("AULA_CONFIG"), "path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(examsCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(announcementsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(devServerCmd)
}

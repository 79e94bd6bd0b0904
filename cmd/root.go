package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lexpipe/internal/app"
	"lexpipe/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "lexpipe",
	Short: "Lexpipe CLI",
	Long:  `Lexpipe ingests legal documents, indexes them for semantic retrieval and answers questions with cited evidence.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	// PersistentPreRunE builds the app once and stashes it in the context
	// for every subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Custom context key type to avoid collisions.
type contextKey string

const appKey contextKey = "app"

func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database connectivity and other diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Checking metadata store connectivity...")
		if err := appInstance.Meta.Ping(ctx); err != nil {
			return fmt.Errorf("metadata store ping failed: %w", err)
		}
		fmt.Println("Metadata store connection successful.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

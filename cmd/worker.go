package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lexpipe/internal/app"
	"lexpipe/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the pipeline worker",
	Long:  `Starts the worker process that consumes pipeline messages and drives documents through extraction and indexing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		return runWorker(appInstance)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config

	srv := worker.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Worker.Concurrency)

	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, appInstance.Pipeline)

	if err := srv.Start(mux); err != nil {
		return err
	}
	log.WithField("concurrency", cfg.Worker.Concurrency).Info("pipeline worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down pipeline worker")
	srv.Shutdown()
	appInstance.Close()
	return nil
}

package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cv-assistant/internal/bootstrap"
	"cv-assistant/internal/queue"
	"cv-assistant/internal/shared/telemetry"
	"cv-assistant/internal/submissions"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume submission notifications and refresh recommendations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return work(cmd)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func work(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer telemetry.Sync()

	if strings.TrimSpace(cfg.SubmissionsQueueURL) == "" {
		return fmt.Errorf("SUBMISSIONS_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		telemetry.Error("worker.bootstrap_failed", map[string]any{"error": err.Error()})
		return err
	}
	defer a.Close()
	if a.DB == nil {
		telemetry.Warn("worker.memory_state", map[string]any{"reason": "recommendations will not reach the API process"})
	}

	consumer, err := queue.NewSQSConsumer(ctx, cfg.SubmissionsQueueURL, cfg.AWSRegion, queue.ConsumerOptions{
		Concurrency:     cfg.WorkerConcurrency,
		Visibility:      cfg.WorkerVisibility,
		ShutdownTimeout: cfg.WorkerShutdownTimeout,
	})
	if err != nil {
		return err
	}

	processor := submissions.NewProcessor(a.StateRepo, a.Advisor)
	return consumer.Run(ctx, processor.Handle)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/activities"
	apiclient "github.com/cx-tal-miterani/flight-surety/internal/client"
	"github.com/cx-tal-miterani/flight-surety/internal/config"
	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/internal/logger"
	"github.com/cx-tal-miterani/flight-surety/internal/workflows"
	"github.com/cx-tal-miterani/flight-surety/shared/models"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.NewWorkerCommand(run).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Worker) error {
	log, err := logger.New(cfg.Logger())
	if err != nil {
		return err
	}

	api, err := apiclient.New(cfg.APIURL, apiclient.WithTimeout(cfg.APITimeout))
	if err != nil {
		return err
	}

	codes := make([]ledger.StatusCode, len(cfg.StatusCodes))
	for i, c := range cfg.StatusCodes {
		codes[i] = ledger.StatusCode(c)
	}
	reporter := activities.NewRandomReporter(codes, time.Now().UnixNano())

	// Register the oracles with the ledger
	pool := activities.NewOraclePool(api, reporter, logger.Module(log, "oracles"))
	log.Info().Int("oracles", cfg.Oracles).Str("api", cfg.APIURL).Msg("Registering oracles...")
	if err := pool.Register(ctx, cfg.OracleSeed, cfg.Oracles, cfg.Fee); err != nil {
		return fmt.Errorf("failed to register oracles: %w", err)
	}
	log.Info().Int("oracles", pool.Size()).Msg("Oracles registered")

	// Connect to Temporal
	log.Info().Str("host", cfg.TemporalHost).Msg("Connecting to Temporal...")
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   logger.NewTemporalLogger(logger.Module(log, "temporal")),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	defer c.Close()
	log.Info().Msg("Connected to Temporal")

	// Create worker
	w := worker.New(c, cfg.TaskQueue, worker.Options{})

	// Register workflows
	w.RegisterWorkflowWithOptions(workflows.OracleRequestWorkflow, workflow.RegisterOptions{Name: models.OracleWorkflowName})

	// Create and register activities
	acts := activities.NewActivities(pool, api)
	w.RegisterActivityWithOptions(acts.OraclesForRequest, activity.RegisterOptions{Name: activities.OraclesForRequestName})
	w.RegisterActivityWithOptions(acts.ReportStatus, activity.RegisterOptions{Name: activities.ReportStatusName})
	w.RegisterActivityWithOptions(acts.SubmitResponse, activity.RegisterOptions{Name: activities.SubmitResponseName})

	// Start worker
	log.Info().Str("task_queue", cfg.TaskQueue).Msg("Starting Temporal worker...")
	interrupt := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()
	if err := w.Run(interrupt); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	log.Info().Msg("Worker stopped")
	return nil
}

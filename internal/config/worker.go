package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

// Worker is the configuration of the oracle worker.
type Worker struct {
	Base

	TemporalHost    string
	TaskQueue       string
	APIURL          string
	APITimeout      time.Duration
	Oracles         int
	OracleSeed      string
	StatusCodes     []int
	RegistrationFee string

	// set by Complete
	Fee *uint256.Int
}

// NewWorkerCommand creates the oracle worker command.
func NewWorkerCommand(run func(ctx context.Context, cfg *Worker) error) *cobra.Command {
	cfg := &Worker{}
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Runs the oracle worker answering flight status requests",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeConfig(cmd, &cfg.Base)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Complete(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}

	fs := cmd.Flags()
	addBaseFlags(fs, &cfg.Base)
	fs.StringVar(&cfg.TemporalHost, "temporal-host", "localhost:7233", "Temporal frontend address")
	fs.StringVar(&cfg.TaskQueue, "task-queue", DefaultTaskQueue, "Temporal task queue to poll")
	fs.StringVar(&cfg.APIURL, "api-url", "http://localhost:8080", "base URL of the surety API server")
	fs.DurationVar(&cfg.APITimeout, "api-timeout", 10*time.Second, "timeout of a single API call")
	fs.IntVar(&cfg.Oracles, "oracles", 20, "number of oracles to register")
	fs.StringVar(&cfg.OracleSeed, "oracle-seed", "flight-surety-oracles", "seed the oracle addresses are derived from")
	fs.IntSliceVar(&cfg.StatusCodes, "status-codes", []int{10, 20, 30, 40, 50}, "status codes the simulated oracles report")
	fs.StringVar(&cfg.RegistrationFee, "registration-fee", ledger.FormatWei(ledger.OracleRegistrationFee), "oracle registration fee in wei")
	return cmd
}

// Complete validates the configuration and parses the typed fields.
func (c *Worker) Complete() error {
	if c.TemporalHost == "" {
		return errors.New("temporal-host is required")
	}
	if c.APIURL == "" {
		return errors.New("api-url is required")
	}
	if c.Oracles <= 0 {
		return errors.New("oracles must be positive")
	}
	if len(c.StatusCodes) == 0 {
		return errors.New("at least one status code is required")
	}
	for _, code := range c.StatusCodes {
		if code < 0 || code > 255 || !ledger.StatusCode(code).Valid() {
			return fmt.Errorf("invalid status code %d", code)
		}
	}
	fee, err := ledger.ParseWei(c.RegistrationFee)
	if err != nil {
		return fmt.Errorf("registration-fee: %w", err)
	}
	c.Fee = fee
	return nil
}

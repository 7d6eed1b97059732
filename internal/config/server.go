package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// Server is the configuration of the API server.
type Server struct {
	Base

	Port              string
	TemporalHost      string
	TaskQueue         string
	WorkflowTimeout   time.Duration
	DatabaseURL       string
	SnapshotPath      string
	SnapshotHistory   int
	NotificationLimit int
	ShutdownTimeout   time.Duration

	OwnerHex         string
	FirstAirlineHex  string
	FirstAirlineName string
	IndexSeedHex     string

	// set by Complete
	Owner        common.Address
	FirstAirline common.Address
	IndexSeed    common.Hash
}

const DefaultTaskQueue = "flight-surety-oracles"

// NewServerCommand creates the server command; run is invoked with the
// completed configuration.
func NewServerCommand(run func(ctx context.Context, cfg *Server) error) *cobra.Command {
	cfg := &Server{}
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Runs the flight surety API server",
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
	fs.StringVar(&cfg.Port, "port", "8080", "HTTP listen port")
	fs.StringVar(&cfg.TemporalHost, "temporal-host", "localhost:7233", "Temporal frontend address, empty disables oracle workflows")
	fs.StringVar(&cfg.TaskQueue, "task-queue", DefaultTaskQueue, "Temporal task queue of the oracle worker")
	fs.DurationVar(&cfg.WorkflowTimeout, "workflow-timeout", 10*time.Minute, "execution timeout of an oracle request workflow")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "Postgres URL of the notification journal, empty disables it")
	fs.StringVar(&cfg.SnapshotPath, "snapshot-path", "surety.db", "bolt file holding ledger snapshots, empty disables persistence")
	fs.IntVar(&cfg.SnapshotHistory, "snapshot-history", 16, "number of past snapshots retained")
	fs.IntVar(&cfg.NotificationLimit, "notification-limit", 1024, "notifications kept in memory")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown timeout")
	fs.StringVar(&cfg.OwnerHex, "owner", "", "owner address allowed to toggle the operational status")
	fs.StringVar(&cfg.FirstAirlineHex, "first-airline", "", "address of the airline admitted at bootstrap")
	fs.StringVar(&cfg.FirstAirlineName, "first-airline-name", "First Airline", "name of the bootstrap airline")
	fs.StringVar(&cfg.IndexSeedHex, "index-seed", "", "32 byte hex seed of the oracle index generator")
	return cmd
}

// Complete validates the configuration and parses the typed fields.
func (c *Server) Complete() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	owner, err := parseAddress("owner", c.OwnerHex, true)
	if err != nil {
		return err
	}
	c.Owner = owner
	if c.FirstAirline, err = parseAddress("first-airline", c.FirstAirlineHex, false); err != nil {
		return err
	}
	if c.IndexSeedHex != "" {
		b := common.FromHex(c.IndexSeedHex)
		if len(b) != common.HashLength {
			return fmt.Errorf("index-seed must be %d bytes of hex", common.HashLength)
		}
		c.IndexSeed = common.BytesToHash(b)
	}
	if c.WorkflowTimeout <= 0 {
		return errors.New("workflow-timeout must be positive")
	}
	return nil
}

// Logger returns the logger configuration.
func (b *Base) Logger() logger.Config {
	return logger.Config{Level: b.LogLevel, Format: b.LogFormat}
}

func parseAddress(name, s string, required bool) (common.Address, error) {
	if s == "" {
		if required {
			return common.Address{}, fmt.Errorf("%s address is required", name)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/config"
	"github.com/cx-tal-miterani/flight-surety/internal/database"
	"github.com/cx-tal-miterani/flight-surety/internal/handlers"
	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/internal/logger"
	"github.com/cx-tal-miterani/flight-surety/internal/repository"
	"github.com/cx-tal-miterani/flight-surety/internal/router"
	"github.com/cx-tal-miterani/flight-surety/internal/service"
	"github.com/cx-tal-miterani/flight-surety/internal/websocket"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.NewServerCommand(run).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Server) error {
	log, err := logger.New(cfg.Logger())
	if err != nil {
		return err
	}

	// Notification sinks
	hub := websocket.NewHub(logger.Module(log, "websocket"))

	var (
		repo    *repository.Repository
		journal *repository.Journal
	)
	if cfg.DatabaseURL != "" {
		log.Info().Msg("Connecting to database...")
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		repo = repository.NewRepository(pool)
		if err := repo.CreateSchema(ctx); err != nil {
			return err
		}
		journal = repository.NewJournal(repo, cfg.NotificationLimit, logger.Module(log, "journal"))
		log.Info().Msg("Connected to database")
	}

	var (
		temporalClient client.Client
		signaler       *service.WorkflowSignaler
	)
	if cfg.TemporalHost != "" {
		log.Info().Str("host", cfg.TemporalHost).Msg("Connecting to Temporal...")
		temporalClient, err = client.Dial(client.Options{
			HostPort: cfg.TemporalHost,
			Logger:   logger.NewTemporalLogger(logger.Module(log, "temporal")),
		})
		if err != nil {
			return fmt.Errorf("failed to create Temporal client: %w", err)
		}
		defer temporalClient.Close()
		signaler = service.NewWorkflowSignaler(temporalClient, logger.Module(log, "signaler"))
	}

	notifiers := []ledger.Notifier{hub}
	if journal != nil {
		notifiers = append(notifiers, journal)
	}
	if signaler != nil {
		notifiers = append(notifiers, signaler)
	}

	// Ledger, restored from the latest snapshot when there is one
	ledgerOpts := []ledger.Option{
		ledger.WithLogger(logger.Module(log, "ledger")),
		ledger.WithNotifier(ledger.MultiNotifier(notifiers...)),
		ledger.WithIndexGenerator(ledger.KeccakIndexes{Seed: cfg.IndexSeed}),
		ledger.WithNotificationLimit(cfg.NotificationLimit),
	}
	svcOpts := []service.Option{service.WithLogger(logger.Module(log, "service"))}

	var l *ledger.Ledger
	if cfg.SnapshotPath != "" {
		store, err := database.Open(cfg.SnapshotPath, database.WithHistory(cfg.SnapshotHistory))
		if err != nil {
			return err
		}
		defer store.Close()
		if l, err = restore(store, cfg, ledgerOpts, log); err != nil {
			return err
		}
		svcOpts = append(svcOpts, service.WithSnapshotStore(store))
	} else {
		if l, err = bootstrap(cfg, ledgerOpts); err != nil {
			return err
		}
	}

	if repo != nil {
		checkJournal(ctx, repo, l, log)
	}

	if temporalClient != nil {
		svcOpts = append(svcOpts, service.WithTemporal(temporalClient, cfg.TaskQueue, cfg.WorkflowTimeout))
	}
	suretyService := service.NewSuretyService(l, svcOpts...)

	// Initialize handlers
	h := handlers.NewHandler(suretyService)
	r := router.SetupRouter(h, hub, log)
	if repo != nil {
		router.RegisterJournalRoutes(r, handlers.NewJournalHandler(repo))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Stringer("owner", cfg.Owner).Msg("API Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		hub.Run()
		return nil
	})
	if journal != nil {
		g.Go(func() error { return journal.Run(ctx) })
	}
	if signaler != nil {
		g.Go(func() error { return signaler.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down server...")
		hub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Server stopped")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

// restore loads the latest snapshot that restores cleanly, walking back
// through the retained history. An empty store starts a fresh ledger.
func restore(store *database.SnapshotStore, cfg *config.Server, opts []ledger.Option, log zerolog.Logger) (*ledger.Ledger, error) {
	st, err := store.Load()
	if errors.Is(err, database.ErrNotFound) {
		log.Info().Str("path", store.Path()).Msg("No snapshot found, starting a new ledger")
		return bootstrap(cfg, opts)
	}
	if err != nil {
		return nil, err
	}

	l, err := ledger.Restore(st, opts...)
	if err != nil {
		log.Error().Err(err).Uint64("seq", st.Seq).Msg("Latest snapshot is unusable, trying older ones")
		if l, st, err = restoreHistory(store, st.Seq, opts, log); err != nil {
			return nil, err
		}
	}
	if l.Owner() != cfg.Owner {
		log.Warn().Stringer("snapshot_owner", l.Owner()).Stringer("configured_owner", cfg.Owner).
			Msg("Snapshot owner differs from the configured owner, keeping the snapshot owner")
	}
	log.Info().Uint64("seq", st.Seq).Int("airlines", l.GetNumAirlines()).Msg("Ledger restored")
	return l, nil
}

func restoreHistory(store *database.SnapshotStore, failed uint64, opts []ledger.Option, log zerolog.Logger) (*ledger.Ledger, *ledger.State, error) {
	seqs, err := store.History()
	if err != nil {
		return nil, nil, err
	}
	for i := len(seqs) - 1; i >= 0; i-- {
		if seqs[i] >= failed {
			continue
		}
		st, err := store.LoadAt(seqs[i])
		if err != nil {
			log.Error().Err(err).Uint64("seq", seqs[i]).Msg("Failed to load snapshot")
			continue
		}
		l, err := ledger.Restore(st, opts...)
		if err != nil {
			log.Error().Err(err).Uint64("seq", seqs[i]).Msg("Failed to restore snapshot")
			continue
		}
		return l, st, nil
	}
	return nil, nil, fmt.Errorf("no restorable snapshot in %s", store.Path())
}

// checkJournal warns when the journal holds notifications the restored ledger
// never produced, which happens after restoring an older snapshot.
func checkJournal(ctx context.Context, repo *repository.Repository, l *ledger.Ledger, log zerolog.Logger) {
	last, err := repo.LastSequence(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read journal position")
		return
	}
	if seq := l.Snapshot().Seq; last > seq {
		log.Warn().Uint64("journal_seq", last).Uint64("ledger_seq", seq).
			Msg("Journal is ahead of the ledger, sequence numbers will repeat")
	}
}

func bootstrap(cfg *config.Server, opts []ledger.Option) (*ledger.Ledger, error) {
	l := ledger.New(cfg.Owner, opts...)
	if cfg.FirstAirline != (common.Address{}) {
		if err := l.Bootstrap(cfg.FirstAirline, cfg.FirstAirlineName); err != nil {
			return nil, err
		}
	}
	return l, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/erp/clinicsync/internal/application/ingest"
	"github.com/erp/clinicsync/internal/infrastructure/cache"
	"github.com/erp/clinicsync/internal/infrastructure/keylock"
	"github.com/erp/clinicsync/internal/infrastructure/persistence"
	"github.com/erp/clinicsync/internal/infrastructure/scheduler"
	"github.com/erp/clinicsync/internal/infrastructure/storage"
	"github.com/erp/clinicsync/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrStorageDisabled is returned when the dead-letter archive is not configured.
var ErrStorageDisabled = errors.New("object storage is disabled; failed deliveries were not archived")

func newRecordCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "record <id>",
		Short: "Replay a failed journal record from its dead-letter archive",
		Long: `Replay a failed journal record. The archived bundle is reconciled again
under the record's delivery id and the journal row is updated in place.

Example:
  replay record 5f0c6e0e-8f5b-4a55-9d1c-2b4f0d7f8c11`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid record id %q: %w", args[0], err)
			}
			return runRecord(cmd, rootOpts, id)
		},
	}
}

func runRecord(cmd *cobra.Command, opts *RootOptions, id uuid.UUID) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if !cfg.Storage.Enabled {
		return ErrStorageDisabled
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to journal: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.EnsureSchema(); err != nil {
		return err
	}

	deadLetters, err := storage.NewS3DeadLetterStore(ctx, &cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return err
	}

	redisClient, err := cache.Connect(ctx, cache.RedisConfig{
		Enabled:       cfg.Redis.Enabled,
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		AllowFallback: cfg.Redis.AllowFallback,
	}, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	fhir, err := newFHIRClient(cfg)
	if err != nil {
		return err
	}
	dispatcher, err := newDispatcher(cfg, fhir, log)
	if err != nil {
		return err
	}

	pool, err := scheduler.NewKeyedPool(scheduler.PoolConfig{
		Workers:    1,
		QueueSize:  1,
		JobTimeout: cfg.Pipeline.JobTimeout,
	}, log)
	if err != nil {
		return err
	}
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = pool.Stop(context.Background()) }()

	prefix := cfg.Storage.Prefix
	svc := ingest.NewService(dispatcher, pool, keylock.New(redisClient, log),
		persistence.NewGormJournalRepository(db.DB),
		ingest.Options{
			LockTTL:       cfg.Pipeline.LockTTL,
			DedupeEnabled: cfg.Pipeline.DedupeEnabled,
			DedupeTTL:     cfg.Pipeline.DedupeTTL,
		},
		ingest.WithFetcher(fhir),
		ingest.WithIdempotencyStore(cache.NewIdempotencyStore(redisClient)),
		ingest.WithDeadLetterStore(deadLetters, func(at time.Time, correlationKey, deliveryID string) string {
			return storage.DeadLetterKey(prefix, at, correlationKey, deliveryID)
		}),
		ingest.WithLogger(log),
	)

	result, err := svc.Replay(ctx, id)
	if result != nil && result.Record != nil {
		if werr := writeJSON(cmd.OutOrStdout(), dto.ToReconciliationRecordResponse(result.Record)); werr != nil {
			return werr
		}
	}
	if err != nil {
		log.Error("Replay failed", zap.String("record_id", id.String()), zap.Error(err))
		return err
	}
	log.Info("Record replayed", zap.String("record_id", id.String()), zap.String("action", string(result.Outcome.Action)))
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"flightsurety/internal/journal"
	"flightsurety/internal/journal/badgersink"
	"flightsurety/internal/journal/kafkasink"
	"flightsurety/internal/journal/pgsink"
	"flightsurety/internal/journal/redissink"
	"flightsurety/internal/platform/config"
	platformredis "flightsurety/internal/platform/redis"
	"flightsurety/pkg/platform/circuit"
)

// openJournal fans events out to the local badger journal and to every
// optional backend that is configured.
func openJournal(ctx context.Context, cfg config.Config, redisClient *platformredis.Client, log *slog.Logger) (*journal.Publisher, func() error, error) {
	var (
		sinks   []journal.Sink
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*journal.Publisher, func() error, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		cleanup()
		return nil, nil, err
	}

	local, err := badgersink.Open(cfg.Journal.BadgerDir)
	if err != nil {
		return fail(fmt.Errorf("open badger journal: %w", err))
	}
	sinks = append(sinks, local)

	if redisClient != nil {
		sinks = append(sinks, guarded("redis", redissink.New(redisClient), log))
		log.Info("journal stream enabled", "stream", redissink.DefaultStream)
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		closers = append(closers, pool.Close)
		pg := pgsink.New(pool)
		if err := pg.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("migrate journal table: %w", err))
		}
		sinks = append(sinks, guarded("postgres", pg, log))
		log.Info("journal table enabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		k, err := kafkasink.New(ctx, kafkasink.Config{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.Topic,
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		})
		if err != nil {
			return fail(fmt.Errorf("connect kafka: %w", err))
		}
		sinks = append(sinks, guarded("kafka", k, log))
		log.Info("journal topic enabled", "topic", k.Topic())
	}

	opts := []journal.Option{journal.WithLogger(log)}
	if cfg.Journal.AsyncBuffer > 0 {
		opts = append(opts, journal.WithAsyncBuffer(cfg.Journal.AsyncBuffer))
	}
	publisher := journal.NewPublisher(journal.NewFanout(sinks...), opts...)

	closeAll := func() error {
		err := publisher.Close()
		cleanup()
		return err
	}
	return publisher, closeAll, nil
}

// guarded wraps a remote sink with a breaker of the same name.
func guarded(name string, sink journal.Sink, log *slog.Logger) journal.Sink {
	return journal.NewGuardedSink(sink, circuit.New(name), 0, log)
}

// main package for the phonemizer-service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/phonemizer-service/internal/config"
	"github.com/book-expert/phonemizer-service/internal/objectstore"
	"github.com/book-expert/phonemizer-service/internal/ops"
	"github.com/book-expert/phonemizer-service/internal/phonemizer"
	"github.com/book-expert/phonemizer-service/internal/phonemizer/espeak"
	"github.com/book-expert/phonemizer-service/internal/worker"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "phonemizer-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Bootstrap logger until the configured log directory is known.
	bootstrapLog, err := logger.New(os.TempDir(), "phonemizer-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	// 2. The espeak binary must work before any request is accepted.
	provider := espeak.NewProvider(cfg.Phonemizer.EspeakBinary)

	err = provider.Check(ctx)
	if err != nil {
		finalLog.Error("espeak check failed: %v", err)

		return fmt.Errorf("espeak check failed: %w", err)
	}

	manager, err := phonemizer.Init(provider, phonemizer.Options{
		RecycleThreshold: cfg.Phonemizer.RecycleThreshold,
		RecycleMode:      phonemizer.RecycleMode(cfg.Phonemizer.RecycleMode),
	}, finalLog)
	if err != nil {
		return fmt.Errorf("failed to initialize phonemizer: %w", err)
	}

	defer func() {
		shutdownErr := phonemizer.ShutdownDefault()
		if shutdownErr != nil {
			finalLog.Error("Failed to shut down phonemizer: %v", shutdownErr)
		}
	}()

	// 3. NATS and the object store for text referenced by key.
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		finalLog.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	store, err := connectObjectStore(ctx, natsConnection, cfg.NATS.ObjectStoreBucket)
	if err != nil {
		finalLog.Error("Failed to open object store %s: %v", cfg.NATS.ObjectStoreBucket, err)

		return err
	}

	natsWorker := worker.NewNatsWorker(natsConnection, worker.Options{
		PhonemizeSubject: cfg.NATS.PhonemizeSubject,
		StatsSubject:     cfg.NATS.StatsSubject,
		QueueGroup:       cfg.NATS.QueueGroup,
		DefaultLanguage:  cfg.Phonemizer.DefaultLanguage,
		Timeout:          cfg.Phonemizer.Timeout(),
	}, store, manager, finalLog)

	opsServer := ops.NewServer(cfg.Ops.ListenAddr, provider, manager, cfg.Ops.Warmup(), finalLog)

	stats := manager.Stats()
	finalLog.System("Phonemizer-Service initialized (threshold %d, mode %s). Listening on subject: %s",
		stats.Threshold, stats.Mode, cfg.NATS.PhonemizeSubject)

	// 4. Serve until a signal arrives or a component fails.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return natsWorker.Run(groupCtx) })
	group.Go(func() error { return opsServer.Run(groupCtx) })

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		finalLog.Error("Service stopped with error: %v", err)

		return err
	}

	finalLog.System("Phonemizer-Service shutting down.")

	return nil
}

func connectObjectStore(ctx context.Context, natsConnection *nats.Conn, bucket string) (*objectstore.NatsObjectStore, error) {
	js, err := jetstream.New(natsConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}

	return store, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}

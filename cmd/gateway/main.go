// file: cmd/gateway/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kimosabey/dataquarantine/internal/config"
	"github.com/kimosabey/dataquarantine/internal/engine"
	"github.com/kimosabey/dataquarantine/internal/logging"
	"github.com/kimosabey/dataquarantine/internal/metrics"
	"github.com/kimosabey/dataquarantine/internal/quarantine"
	"github.com/kimosabey/dataquarantine/internal/remediate"
	"github.com/kimosabey/dataquarantine/internal/schema"
	"github.com/kimosabey/dataquarantine/internal/sink"
	"github.com/kimosabey/dataquarantine/internal/stream"
	"github.com/kimosabey/dataquarantine/internal/validator"
	"github.com/kimosabey/dataquarantine/internal/worker"
)

// Version information, set during build via ldflags.
var (
	Version    = "0.1.0-dev"
	commitHash = "unknown" //nolint:unused // set via ldflags during build.
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		configPath := serveCmd.String("config", getDefaultConfigPath(), "Path to configuration file.")
		debug := serveCmd.Bool("debug", false, "Enable debug logging.")
		if err := serveCmd.Parse(os.Args[2:]); err != nil {
			log.Fatalf("failed to parse serve flags: %+v", err)
		}

		logging.SetupDefaultLogger(levelName(*debug))
		if err := runServe(*configPath); err != nil {
			log.Fatalf("serve failed: %+v", err)
		}

	case "lint-schema":
		lintCmd := flag.NewFlagSet("lint-schema", flag.ExitOnError)
		dir := lintCmd.String("dir", "./schemas", "Schema directory.")
		name := lintCmd.String("name", "", "Schema name to lint.")
		version := lintCmd.String("version", "latest", "Schema version to lint.")
		if err := lintCmd.Parse(os.Args[2:]); err != nil {
			log.Fatalf("failed to parse lint-schema flags: %+v", err)
		}
		if *name == "" {
			log.Fatal("lint-schema: -name is required")
		}

		logging.SetupDefaultLogger("info")
		if err := runLintSchema(*dir, *name, *version); err != nil {
			log.Fatalf("lint-schema failed: %+v", err)
		}

	case "list-schemas":
		listCmd := flag.NewFlagSet("list-schemas", flag.ExitOnError)
		dir := listCmd.String("dir", "./schemas", "Schema directory.")
		if err := listCmd.Parse(os.Args[2:]); err != nil {
			log.Fatalf("failed to parse list-schemas flags: %+v", err)
		}

		logging.SetupDefaultLogger("info")
		if err := runListSchemas(*dir); err != nil {
			log.Fatalf("list-schemas failed: %+v", err)
		}

	case "-h", "--help", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func levelName(debug bool) string {
	if debug {
		return "debug"
	}
	return "info"
}

func printUsage() {
	fmt.Println("DataQuarantine Gateway", Version)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gateway serve [-config path] [-debug]")
	fmt.Println("  gateway lint-schema -name NAME [-version VERSION] [-dir DIR]")
	fmt.Println("  gateway list-schemas [-dir DIR]")
}

func getDefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gateway.yaml"
	}
	return filepath.Join(home, ".config", "dataquarantine", "gateway.yaml")
}

// runServe wires every component per SPEC_FULL.md's component map and
// runs the stream worker until an interrupt or terminate signal arrives.
func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	collector := metrics.NewCollector()
	go func() {
		if err := collector.Serve(cfg.Metrics.ListenAddr); err != nil {
			logging.GetLogger("main").Error("metrics server stopped", "error", err)
		}
	}()

	registry := schema.NewRegistry(schema.NewDirectorySource(cfg.Schema.Directory), cfg.Schema.CacheTTL)
	chain := validator.NewChain(validator.NewJSONSchemaValidator())

	var opts []engine.Option
	if cfg.Validation.EnableAutoRemediation {
		opts = append(opts, engine.WithRemediation(func(doc schema.Document) remediate.Remediator {
			return remediate.NewStructuralRemediator(doc)
		}))
	}
	if cfg.Validation.Timeout > 0 {
		opts = append(opts, engine.WithTimeout(cfg.Validation.Timeout))
	}
	eng := engine.New(registry, chain, collector, opts...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consumer := stream.NewKafkaConsumer(stream.KafkaConsumerConfig{
		Bootstrap:       cfg.Stream.Bootstrap,
		Topic:           cfg.Stream.InputTopic,
		GroupID:         cfg.Stream.GroupID,
		AutoOffsetReset: cfg.Stream.AutoOffsetReset,
	})
	defer consumer.Close()

	validatedProducer := stream.NewKafkaProducer(cfg.Stream.Bootstrap)
	defer validatedProducer.Close()
	quarantineProducer := stream.NewKafkaProducer(cfg.Stream.Bootstrap)
	defer quarantineProducer.Close()

	index, err := quarantine.NewPostgresIndex(ctx, cfg.Quarantine.IndexDSN)
	if err != nil {
		return fmt.Errorf("connecting quarantine index: %w", err)
	}
	defer index.Close()

	var blob quarantine.BlobStore
	if cfg.Quarantine.BlobStore.Enabled {
		minioStore, err := quarantine.NewMinioBlobStore(ctx,
			cfg.Quarantine.BlobStore.Endpoint, cfg.Quarantine.BlobStore.AccessKeyID,
			cfg.Quarantine.BlobStore.SecretAccessKey, cfg.Quarantine.BlobStore.Bucket,
			cfg.Quarantine.BlobStore.UseSSL)
		if err != nil {
			return fmt.Errorf("connecting blob store: %w", err)
		}
		blob = minioStore
	}

	router := sink.NewRouter(sink.Config{
		ValidatedProducer:  validatedProducer,
		QuarantineProducer: quarantineProducer,
		ValidatedTopic:     cfg.Sinks.ValidatedTopic,
		DLQTopic:           cfg.Sinks.DLQTopic,
		Index:              index,
		Blob:               blob,
		BlobThresholdBytes: cfg.Quarantine.BlobStore.ThresholdBytes,
		BatchSize:          cfg.Quarantine.BatchSize,
		Metrics:            collector,
	})

	w := worker.New(worker.Config{
		Consumer:       consumer,
		Router:         router,
		Engine:         eng,
		Topic:          cfg.Stream.InputTopic,
		SchemaIDField:  cfg.Stream.SchemaIDField,
		MaxPollRecords: cfg.Stream.MaxPollRecords,
	})

	go reportLagPeriodically(ctx, consumer, collector)

	go func() {
		<-ctx.Done()
		w.Shutdown()
	}()

	return w.Run(ctx)
}

// reportLagPeriodically polls the consumer's lag on a fixed interval and
// feeds it to the kafka_lag gauge (spec.md §6), until ctx is canceled.
func reportLagPeriodically(ctx context.Context, consumer stream.Consumer, collector *metrics.Collector) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lag, err := consumer.Lag(ctx)
			if err != nil {
				logging.GetLogger("main").Warn("lag poll failed", "error", err)
				continue
			}
			for tp, value := range lag {
				collector.SetKafkaLag(tp.Topic, tp.Partition, value)
			}
		}
	}
}

// runLintSchema loads a single schema through the registry and reports
// whether it resolves and compiles cleanly, for CI and local authoring.
func runLintSchema(dir, name, version string) error {
	registry := schema.NewRegistry(schema.NewDirectorySource(dir), 0)
	doc, err := registry.Get(context.Background(), name, version)
	if err != nil {
		return fmt.Errorf("resolving schema %s:%s: %w", name, version, err)
	}

	v := validator.NewJSONSchemaValidator()
	if _, err := v.Validate(context.Background(), doc, map[string]interface{}{}); err != nil {
		return fmt.Errorf("compiling schema %s:%s: %w", name, version, err)
	}

	fmt.Printf("schema %s:%s OK\n", name, version)
	return nil
}

// runListSchemas enumerates the schema names available in dir, for
// operator sanity checks and CI scripting.
func runListSchemas(dir string) error {
	registry := schema.NewRegistry(schema.NewDirectorySource(dir), 0)
	names, err := registry.ListSchemas(context.Background())
	if err != nil {
		return fmt.Errorf("listing schemas in %s: %w", dir, err)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

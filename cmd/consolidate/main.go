package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cifuentesedw/emergencias-etl/internal/adapter/csvfile"
	httpadapter "github.com/cifuentesedw/emergencias-etl/internal/adapter/http"
	kafkaadapter "github.com/cifuentesedw/emergencias-etl/internal/adapter/kafka"
	"github.com/cifuentesedw/emergencias-etl/internal/config"
	"github.com/cifuentesedw/emergencias-etl/internal/domain"
	"github.com/cifuentesedw/emergencias-etl/internal/observability"
	"github.com/cifuentesedw/emergencias-etl/internal/pipeline"
	"github.com/cifuentesedw/emergencias-etl/internal/schema"
)

func main() {
	root := &cobra.Command{
		Use:           "consolidate",
		Short:         "Consolidates yearly emergency-report extracts into one canonical table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newCheckSchemaCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full consolidation over the configured input directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cfg)
		},
	}
}

func run(cfg *config.Config) error {
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	registry, normalizer, err := loadConfiguration(cfg)
	if err != nil {
		return err
	}

	entries, err := csvfile.ReadDirectory(cfg.DirectoryFile)
	if err != nil {
		return err
	}
	directory, err := domain.NewDirectory(entries, normalizer)
	if err != nil {
		return err
	}
	logger.Info("directory loaded", "entries", directory.Len())

	extracts, err := csvfile.ScanExtracts(cfg.InputDir)
	if err != nil {
		return err
	}
	if len(extracts) == 0 {
		return fmt.Errorf("no extracts found in %s", cfg.InputDir)
	}
	logger.Info("extracts scanned", "eras", len(extracts))

	consolidator := pipeline.New(registry, directory, normalizer, logger, metrics, cfg.Workers)

	srv := httpadapter.NewServer(cfg.HTTPAddr, consolidator, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := consolidator.Run(ctx, extracts)
	if err != nil {
		// No partial table: downstream consumers expect a complete
		// reconciled table or none.
		return fmt.Errorf("consolidation failed: %w", err)
	}

	if err := csvfile.WriteTable(cfg.OutputFile, result.Records); err != nil {
		return err
	}
	if err := csvfile.WriteReport(cfg.ReportFile, result.Report); err != nil {
		return err
	}
	logger.Info("outputs written",
		"table", cfg.OutputFile,
		"report", cfg.ReportFile,
		"records", len(result.Records),
		"anomalies", result.Report.Len(),
	)

	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		if err := publisher.PublishTable(ctx, result.Records); err != nil {
			return fmt.Errorf("publish table: %w", err)
		}
	}
	return nil
}

func newCheckSchemaCmd() *cobra.Command {
	var registryFile, aliasFile string
	cmd := &cobra.Command{
		Use:   "check-schema",
		Short: "Validate a schema registry and alias table without running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := &config.Config{RegistryFile: registryFile, AliasFile: aliasFile}
			registry, _, err := loadConfiguration(cfg)
			if err != nil {
				return err
			}
			eras := registry.Eras()
			if len(eras) == 0 {
				return errors.New("registry declares no eras")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registry ok: %d eras (%d-%d), %d unified fields\n",
				len(eras), eras[0], eras[len(eras)-1], len(registry.UnifyRules()))
			return nil
		},
	}
	cmd.Flags().StringVar(&registryFile, "registry", "", "registry YAML (default: embedded)")
	cmd.Flags().StringVar(&aliasFile, "aliases", "", "alias table YAML (default: embedded)")
	return cmd
}

// loadConfiguration builds the registry and normalizer, preferring
// configured files over the embedded defaults.
func loadConfiguration(cfg *config.Config) (*schema.Registry, *domain.Normalizer, error) {
	registry, err := loadRegistry(cfg.RegistryFile)
	if err != nil {
		return nil, nil, err
	}
	aliases, err := loadAliases(cfg.AliasFile)
	if err != nil {
		return nil, nil, err
	}
	normalizer, err := domain.NewNormalizer(aliases)
	if err != nil {
		return nil, nil, err
	}
	return registry, normalizer, nil
}

func loadRegistry(path string) (*schema.Registry, error) {
	if path == "" {
		return schema.DefaultRegistry()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()
	return schema.LoadRegistry(f)
}

func loadAliases(path string) (map[string]string, error) {
	if path == "" {
		return schema.DefaultAliases()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alias table: %w", err)
	}
	defer f.Close()
	return schema.LoadAliases(f)
}

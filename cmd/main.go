package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toxref_brick/config"
	"toxref_brick/converter"
	"toxref_brick/download"
	"toxref_brick/logging"
)

func main() {
	var (
		cfgPath    string
		outputPath string
		batchSize  int
		noBackup   bool
	)

	// loadConfig reads the config file and applies command line overrides.
	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("output") {
			cfg.Convert.OutputPath = outputPath
		}
		if cmd.Flags().Changed("batch-size") {
			cfg.Convert.BatchSize = batchSize
		}
		if noBackup {
			cfg.Convert.Backup = false
		}
		return cfg, cfg.Validate()
	}

	rootCmd := &cobra.Command{
		Use:           "toxref",
		Short:         "Download the ToxRefDB dump and convert the database into a SQLite brick",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.GetDefaultConfigPath(), "Path to the YAML config file")

	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch the ToxRefDB dump from the dataset listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withLogger(cfg, func(logger *zap.SugaredLogger) error {
				return runDownload(cmd.Context(), cfg, logger)
			})
		},
	}

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert the source schema into a SQLite file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withLogger(cfg, func(logger *zap.SugaredLogger) error {
				return runConvert(cmd.Context(), cfg, logger)
			})
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Download the dump, then convert the source schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withLogger(cfg, func(logger *zap.SugaredLogger) error {
				if err := runDownload(cmd.Context(), cfg, logger); err != nil {
					return err
				}
				return runConvert(cmd.Context(), cfg, logger)
			})
		},
	}

	for _, c := range []*cobra.Command{convertCmd, runCmd} {
		c.Flags().StringVar(&outputPath, "output", "", "Path of the SQLite file to write (overrides convert.output_path)")
		c.Flags().IntVar(&batchSize, "batch-size", 0, "Rows per insert batch (overrides convert.batch_size)")
		c.Flags().BoolVar(&noBackup, "no-backup", false, "Do not back up and replace an existing output file")
	}
	rootCmd.AddCommand(downloadCmd, convertCmd, runCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

func withLogger(cfg *config.Config, fn func(*zap.SugaredLogger) error) error {
	logger, closeLog, err := logging.New(cfg.Log.Level, cfg.Log.Dir)
	if err != nil {
		return err
	}
	defer closeLog()

	return fn(logger)
}

func runDownload(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	client, err := download.NewClient(cfg.Download, logger)
	if err != nil {
		return err
	}
	path, err := client.Fetch(ctx, cfg.Download.OutputPath)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	logger.Infof("download complete: %s", path)
	return nil
}

func runConvert(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	orch := converter.NewOrchestrator(*cfg, logger, nil, nil)
	report, err := orch.Run(ctx)
	report.Print(os.Stdout)
	if err != nil {
		return err
	}
	logger.Infof("brick written to %s", cfg.Convert.OutputPath)
	return nil
}

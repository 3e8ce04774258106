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

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yleoer/tbseg/pkg/config"
	"github.com/yleoer/tbseg/pkg/converter"
	"github.com/yleoer/tbseg/pkg/database"
	"github.com/yleoer/tbseg/pkg/labels"
	"github.com/yleoer/tbseg/pkg/observe"
	"github.com/yleoer/tbseg/pkg/parser"
	"github.com/yleoer/tbseg/pkg/processor"
	"github.com/yleoer/tbseg/pkg/scanner"
	"github.com/yleoer/tbseg/pkg/scheduler"
)

func main() {
	v := viper.New()
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:           "tbseg",
		Short:         "Convert between per-time-bin label vectors and annotated segments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("dataset-dir", "", "dataset directory (DATASET_DIR)")
	flags.String("output-dir", "", "output directory (OUTPUT_DIR)")
	flags.String("data-dir", "", "state database directory (DATA_DIR)")
	flags.String("labelset", "", `labelset, e.g. "iabcdef" or "1-3,5" (LABELSET)`)
	flags.Bool("labels-are-int", false, "parse labels as integers (LABELS_ARE_INT)")
	flags.Int("workers", 0, "files processed concurrently (WORKERS)")
	flags.String("log-level", "", "log level (LOG_LEVEL)")
	for key, name := range map[string]string{
		"DATASET_DIR":    "dataset-dir",
		"OUTPUT_DIR":     "output-dir",
		"DATA_DIR":       "data-dir",
		"LABELSET":       "labelset",
		"LABELS_ARE_INT": "labels-are-int",
		"WORKERS":        "workers",
		"LOG_LEVEL":      "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	var cfg *config.Config
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadConfig(v); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		logger.SetLevel(level)
		logger.Infof("Configuration loaded: DatasetDir=%s, OutputDir=%s, DataDir=%s, DBPath=%s",
			cfg.DatasetDir, cfg.OutputDir, cfg.DataDir, cfg.DBPath)
		return nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "prep",
			Short: "Encode every unprocessed annotation in the dataset",
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := newApp(cfg, logger)
				if err != nil {
					return err
				}
				defer app.Close()
				_, err = app.scheduler.RunBatch(cmd.Context())
				return err
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Run prep, then keep encoding new or changed annotations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWatch(cmd.Context(), cfg, logger)
			},
		},
		newDecodeCommand(func() *config.Config { return cfg }, logger),
		&cobra.Command{
			Use:   "labelmap",
			Short: "Print the label map prep would use, as YAML",
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := newApp(cfg, logger)
				if err != nil {
					return err
				}
				defer app.Close()
				m, err := app.scheduler.PreviewLabelMap(cmd.Context())
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(m); err != nil {
					return err
				}
				return enc.Close()
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

func newDecodeCommand(loadedConfig func() *config.Config, logger *logrus.Logger) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "decode <file.lbl_tb.json>...",
		Short: "Decode label vectors back to segment CSV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := labels.ReadMapFile(loadedConfig().MapPath)
			if err != nil {
				return fmt.Errorf("failed to load label map (run prep first?): %w", err)
			}
			var errs []error
			for _, path := range args {
				if _, _, err := processor.DecodeVectorFile(path, outDir, m, logger); err != nil {
					logger.WithField("file", path).Errorf("Failed to decode: %v", err)
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "directory for segment CSV files (default: next to each input)")
	return cmd
}

// app 持有一次命令运行所需的全部依赖
type app struct {
	store     database.FileStore
	scheduler *scheduler.TaskScheduler
}

func newApp(cfg *config.Config, logger *logrus.Logger) (*app, error) {
	normalizer, err := converter.NewLabelNormalizer(cfg.LabelT2S, logger)
	if err != nil {
		return nil, err
	}
	store, err := database.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	metrics := observe.DefaultMetrics()
	ts := scheduler.NewTaskScheduler(
		cfg,
		store,
		scanner.NewDatasetScanner(logger),
		parser.NewParser(normalizer, cfg.LabelKind(), logger),
		processor.NewVectorProcessor(cfg.DatasetDir, cfg.OutputDir, metrics, logger),
		metrics,
		logger,
	)
	return &app{store: store, scheduler: ts}, nil
}

func (a *app) Close() error { return a.store.Close() }

func runWatch(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if cfg.MetricsAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer shutdown(context.Background())
		mux := http.NewServeMux()
		mux.Handle("/metrics", observe.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Infof("Serving metrics on %s/metrics", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	ts := app.scheduler

	if _, err := ts.RunBatch(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating file watcher: %w", err)
	}
	defer watcher.Close()
	if err := scheduler.AddRecursive(watcher, cfg.DatasetDir); err != nil {
		return fmt.Errorf("error adding dataset directory %s to watcher: %w", cfg.DatasetDir, err)
	}
	logger.Infof("Monitoring dataset directory %s for new or changed annotations...", cfg.DatasetDir)
	defer ts.StopPending()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down watcher.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			ts.HandleEvent(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Errorf("Watcher error: %v", err)
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/summit/services/sbomindexd/internal/audit"
	"github.com/summit/services/sbomindexd/internal/bus"
	"github.com/summit/services/sbomindexd/internal/config"
	"github.com/summit/services/sbomindexd/internal/index"
	"github.com/summit/services/sbomindexd/internal/indexer"
	"github.com/summit/services/sbomindexd/internal/storage"
)

var (
	cfgPath  string
	httpAddr string
)

func main() {
	root := &cobra.Command{
		Use:   "sbomindexd",
		Short: "SBOM indexing daemon",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath == "" {
				return fmt.Errorf("--config is required")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to sbomindexd config")
	root.PersistentFlags().StringVar(&httpAddr, "http", ":8089", "address for status server")

	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the indexer loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			objects, err := buildObjectStore(ctx, cfg)
			if err != nil {
				return err
			}
			eventBus, err := buildBus(cfg)
			if err != nil {
				return err
			}

			store, err := index.OpenWithSnapshot(ctx, cfg.Index.Directory, objects)
			if err != nil {
				return err
			}
			defer store.Close()

			loop := indexer.New(store, objects, eventBus,
				indexer.NewCommitLogWriter(cfg.Commits.Directory), cfg.SyncInterval)

			if cfg.Audit != nil {
				pool, err := pgxpool.New(ctx, cfg.Audit.URL)
				if err != nil {
					return fmt.Errorf("connect postgres: %w", err)
				}
				defer pool.Close()
				ledger, err := audit.NewLedger(ctx, pool, cfg.Audit.Table)
				if err != nil {
					return err
				}
				loop.Audit = ledger
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
				st := loop.Status.Snapshot()
				writeJSON(w, map[string]any{
					"phase":           st.Phase.String(),
					"reindexProgress": st.ReindexProgress,
					"error":           st.FailedError,
				})
			})

			srv := &http.Server{Addr: httpAddr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("status server error: %v", err)
				}
			}()

			// SIGHUP triggers a full reindex without restarting the daemon.
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			go func() {
				for range hup {
					log.Printf("reindex requested")
					loop.RequestReindex()
				}
			}()

			err = loop.Run(ctx)

			shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if serr := srv.Shutdown(shutdownContext); serr != nil && err == nil {
				err = serr
			}
			return err
		},
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func buildObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.Storage.LocalDir != "" {
		return storage.NewLocalStore(cfg.Storage.LocalDir), nil
	}
	awsCfg, err := loadAWSConfig(ctx, *cfg.Storage.S3)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.S3.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return storage.NewS3Store(client, cfg.Storage.S3.Bucket), nil
}

func buildBus(cfg *config.Config) (bus.Bus, error) {
	if cfg.Bus.Memory {
		return bus.NewMemoryBus(), nil
	}
	return bus.NewNATSBus(cfg.Bus.NATS.URL, cfg.Bus.NATS.Stream, cfg.Bus.NATS.SubjectPrefix)
}

func loadAWSConfig(ctx context.Context, cfg config.S3Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

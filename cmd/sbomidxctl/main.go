package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/summit/services/sbomindexd/internal/config"
	"github.com/summit/services/sbomindexd/internal/filter"
	"github.com/summit/services/sbomindexd/internal/index"
	"github.com/summit/services/sbomindexd/internal/indexer"
	"github.com/summit/services/sbomindexd/internal/query"
	"github.com/summit/services/sbomindexd/internal/storage"
)

var cfgPath string

func main() {
	root := &cobra.Command{Use: "sbomidxctl"}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to sbomindexd config")
	root.AddCommand(newQueryCmd())
	root.AddCommand(newLintCmd())
	root.AddCommand(newVerifyCmd())
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newQueryCmd() *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "query <filter>",
		Short: "Search the published index snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			objects, err := openObjectStore(ctx)
			if err != nil {
				return err
			}

			tree, err := filter.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse query: %w", err)
			}
			compiled := query.Compile(tree)

			dir, err := os.MkdirTemp("", "sbomidxctl-*")
			if err != nil {
				return fmt.Errorf("temp dir: %w", err)
			}
			defer os.RemoveAll(dir)

			store, err := index.OpenWithSnapshot(ctx, dir, objects)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.Search(compiled, offset, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "first hit to return")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum hits to return")
	return cmd
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Dry-run every stored SBOM through the extractor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			objects, err := openObjectStore(ctx)
			if err != nil {
				return err
			}
			failures, err := indexer.Preflight(ctx, objects)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(failures)
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <commit-entry>",
		Short: "Verify a snapshot commit log entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open commit entry: %w", err)
			}
			defer file.Close()
			var entry indexer.CommitEntry
			if err := json.NewDecoder(file).Decode(&entry); err != nil {
				return fmt.Errorf("decode commit entry: %w", err)
			}
			ok, err := indexer.VerifyCommitEntry(entry)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("commit entry verification failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "commit entry %s verified (root=%s)\n", path, entry.Root)
			return nil
		},
	}
}

func openObjectStore(ctx context.Context) (storage.ObjectStore, error) {
	if cfgPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.LocalDir != "" {
		return storage.NewLocalStore(cfg.Storage.LocalDir), nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           cfg.Storage.S3.Endpoint,
				SigningRegion: cfg.Storage.S3.Region,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.S3.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return storage.NewS3Store(client, cfg.Storage.S3.Bucket), nil
}

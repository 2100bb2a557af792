package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dluc/usearch"
	"github.com/dluc/usearch/blobstore"
	"github.com/dluc/usearch/blobstore/minio"
	"github.com/dluc/usearch/blobstore/s3"
)

var storeURL string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Push and pull snapshots to object storage",
	Long: `Copy index snapshots to and from a blob store.

Stores are named by URL:
  file:///var/lib/usearch         a local directory (a bare path works too)
  s3://bucket/prefix              Amazon S3, credentials from the AWS chain
  minio://host:9000/bucket/prefix MinIO, credentials from MINIO_ACCESS_KEY
                                  and MINIO_SECRET_KEY

Every push writes a new uniquely named snapshot and points CURRENT at it.
With --commit-table, S3 pushes record CURRENT in a DynamoDB table instead so
concurrent writers cannot overwrite each other.`,
}

var snapshotPushCmd = &cobra.Command{
	Use:   "push <index>",
	Short: "Upload an index and make it current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, _ := cmd.Flags().GetString("name")
		ioLimit, _ := cmd.Flags().GetInt64("io-limit")

		store, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}

		opts := indexOptions()
		if ioLimit > 0 {
			opts = append(opts, usearch.WithIOLimit(ioLimit))
		}
		r, ok, err := usearch.Restore(args[0], false, opts...)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not a readable index", args[0])
		}
		idx := r.(*usearch.Index)

		if name == "" {
			name = uuid.NewString() + ".usearch"
		}
		if err := idx.SaveTo(ctx, store, name); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
		if err := blobstore.Commit(ctx, store, name); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

var snapshotPullCmd = &cobra.Command{
	Use:   "pull <index>",
	Short: "Download a snapshot into a local index file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, _ := cmd.Flags().GetString("name")

		store, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}
		if name == "" {
			if name, err = blobstore.Current(ctx, store); err != nil {
				return fmt.Errorf("resolve %s: %w", blobstore.CurrentName, err)
			}
		}

		meta, ok := usearch.MetadataFrom(ctx, store, name)
		if !ok {
			return fmt.Errorf("%s is not a readable snapshot", name)
		}
		idx, err := usearch.New(meta.Config(), indexOptions()...)
		if err != nil {
			return err
		}
		if err := idx.LoadFrom(ctx, store, name); err != nil {
			return fmt.Errorf("download %s: %w", name, err)
		}
		if err := idx.Save(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d vectors)\n", name, args[0], idx.Len())
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the snapshots in a store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}
		names, err := store.List(ctx, "")
		if err != nil {
			return err
		}
		current, _ := blobstore.Current(ctx, store)

		out := cmd.OutOrStdout()
		for _, name := range names {
			if name == blobstore.CurrentName {
				continue
			}
			marker := " "
			if name == current {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, name)
		}
		return nil
	},
}

// openStore resolves the --store URL.
func openStore(ctx context.Context, cmd *cobra.Command) (blobstore.Store, error) {
	if storeURL == "" {
		return nil, fmt.Errorf("--store is required")
	}
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store %q: %w", storeURL, err)
	}

	switch u.Scheme {
	case "", "file":
		dir := u.Path
		if u.Scheme == "" {
			dir = storeURL
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return blobstore.NewLocalStore(dir), nil

	case "s3":
		prefix := strings.Trim(u.Path, "/")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		region, _ := cmd.Flags().GetString("region")
		table, _ := cmd.Flags().GetString("commit-table")

		opts := []s3.Option{s3.WithPrefix(prefix)}
		if endpoint != "" {
			opts = append(opts, s3.WithEndpoint(endpoint))
		}
		if region != "" {
			opts = append(opts, s3.WithRegion(region))
		}
		if table != "" {
			return s3.NewWithCommitLog(ctx, u.Host, table, opts...)
		}
		return s3.New(ctx, u.Host, opts...)

	case "minio":
		bucket, prefix, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("minio store %q names no bucket", storeURL)
		}
		region, _ := cmd.Flags().GetString("region")
		tls, _ := cmd.Flags().GetBool("tls")

		opts := []minio.Option{
			minio.WithCredentials(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY")),
			minio.WithPrefix(prefix),
			minio.WithCreateBucket(),
		}
		if region != "" {
			opts = append(opts, minio.WithRegion(region))
		}
		if tls {
			opts = append(opts, minio.WithTLS())
		}
		return minio.Dial(ctx, u.Host, bucket, opts...)
	}
	return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
}

func init() {
	pf := snapshotCmd.PersistentFlags()
	pf.StringVar(&storeURL, "store", "", "blob store URL (file://, s3://, minio://)")
	pf.String("endpoint", "", "S3 endpoint override")
	pf.String("region", "", "object storage region")
	pf.String("commit-table", "", "DynamoDB table for the S3 commit log")
	pf.Bool("tls", false, "use TLS for MinIO")

	snapshotPushCmd.Flags().String("name", "", "snapshot name (default: a random UUID)")
	snapshotPushCmd.Flags().Int64("io-limit", 0, "upload bytes per second (default: unlimited)")
	snapshotPullCmd.Flags().String("name", "", "snapshot name (default: CURRENT)")

	snapshotCmd.AddCommand(snapshotPushCmd, snapshotPullCmd, snapshotListCmd)
	rootCmd.AddCommand(snapshotCmd)
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/bstardust/takeout-geotag/internal/adapter/googletakeout"
	"github.com/bstardust/takeout-geotag/internal/config"
	"github.com/bstardust/takeout-geotag/internal/fshelper"
	"github.com/bstardust/takeout-geotag/internal/journal"
	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/bstardust/takeout-geotag/internal/processor"
	"github.com/bstardust/takeout-geotag/internal/progress"
	"github.com/bstardust/takeout-geotag/internal/worker"
	"github.com/bstardust/takeout-geotag/pkg/geotag"
	"github.com/bstardust/takeout-geotag/pkg/s3client"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const journalSaveInterval = 30 * time.Second

func newFixCommand(v *viper.Viper, cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix [flags] <takeout-folder-or-zip>...",
		Short: "Geotag every photo of a Google Takeout export from its JSON sidecars",
		Long: `Walk one or more Google Takeout folders or zip archives, read the JSON
sidecar of every photo and write its location and capture time into the
JPEG or PNG file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd.Context(), cfg, args)
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "", "Write geotagged copies below this folder")
	flags.Bool("in-place", false, "Rewrite the photos inside the takeout folder")

	flags.String("s3-endpoint", "", "S3 endpoint (e.g. s3.amazonaws.com, localhost:9000)")
	flags.String("s3-region", "us-east-1", "S3 region")
	flags.String("s3-bucket", "", "Upload geotagged copies to this bucket")
	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.Bool("s3-use-ssl", true, "Use HTTPS for S3")
	flags.String("s3-prefix", "", "Prefix for uploaded object keys")

	flags.IntP("concurrency", "c", 4, "Number of files processed in parallel")
	flags.Bool("dry-run", false, "Compute every change without writing anything")
	flags.Bool("resume", true, "Skip files recorded as done in the journal")
	flags.String("journal", "", "Journal file (default: "+journal.DefaultName+" in the home folder)")
	flags.Bool("skip-tagged", false, "Leave photos that already carry GPS data untouched")
	flags.Bool("preserve-metadata", true, "Attach sidecar fields to uploaded objects")
	flags.Int("max-retries", 3, "Upload retries for transient S3 errors")
	flags.Duration("timeout", 0, "Abort the run after this long (0 means no limit)")

	bind := map[string]string{
		"output.dir":              "output",
		"output.in_place":         "in-place",
		"s3.endpoint":             "s3-endpoint",
		"s3.region":               "s3-region",
		"s3.bucket":               "s3-bucket",
		"s3.access_key":           "s3-access-key",
		"s3.secret_key":           "s3-secret-key",
		"s3.use_ssl":              "s3-use-ssl",
		"s3.prefix":               "s3-prefix",
		"batch.concurrency":       "concurrency",
		"batch.dry_run":           "dry-run",
		"batch.resume":            "resume",
		"batch.journal":           "journal",
		"batch.skip_tagged":       "skip-tagged",
		"batch.preserve_metadata": "preserve-metadata",
		"batch.max_retries":       "max-retries",
		"batch.timeout":           "timeout",
	}
	for key, name := range bind {
		v.BindPFlag(key, flags.Lookup(name))
	}

	return cmd
}

func runFix(ctx context.Context, cfg *config.Config, paths []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Batch.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Batch.Timeout)
		defer cancel()
	}

	fsyss, err := fshelper.ParsePath(paths)
	if err != nil {
		return err
	}
	defer fshelper.CloseAll(fsyss)

	if cfg.Output.InPlace {
		for _, fsys := range fsyss {
			if _, ok := fsys.(*fshelper.DirFS); !ok {
				return fmt.Errorf("--in-place needs an extracted folder, %s is a zip archive", fsys.Name())
			}
		}
	}

	jnl, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	if jnl != nil {
		defer jnl.StopPeriodicSave()
	}

	sink, err := newSink(ctx, cfg, jnl)
	if err != nil {
		return err
	}
	if sink != nil {
		logger.Info("Writing geotagged photos to %s", sink)
	}

	embedder := geotag.New()
	pool := worker.NewPool(cfg.Batch.Concurrency)

	var total processor.Summary
	for _, fsys := range fsyss {
		tk, err := googletakeout.New(ctx, fsys)
		if err != nil {
			return fmt.Errorf("failed to read takeout %s: %w", fsys.Name(), err)
		}

		s := sink
		prefix := ""
		if cfg.Output.InPlace {
			s = processor.NewDirSink(fsys.(*fshelper.DirFS).Path())
		} else if len(fsyss) > 1 {
			prefix = fsys.Name()
		}

		logger.Info("Processing %s: %d sidecars found", tk.Name(), len(tk.ListItems()))
		summary, err := processor.New(ctx, embedder, tk, s, jnl, pool, progress.New(), cfg).
			WithKeyPrefix(prefix).
			Run()
		total.Total += summary.Total
		total.Completed += summary.Completed
		total.Skipped += summary.Skipped
		total.Failed += summary.Failed
		total.Elapsed += summary.Elapsed
		total.Failures = append(total.Failures, summary.Failures...)
		if err != nil {
			return fmt.Errorf("processing %s stopped: %w", tk.Name(), err)
		}
	}

	if len(fsyss) > 1 {
		logger.Info("All takeouts: %d geotagged, %d skipped, %d failed of %d in %s",
			total.Completed, total.Skipped, total.Failed, total.Total, total.Elapsed.Round(time.Second))
	}
	if total.Failed > 0 {
		return fmt.Errorf("%d of %d files could not be geotagged", total.Failed, total.Total)
	}
	return nil
}

// openJournal returns nil when nothing is written, since a dry run has no
// progress worth recording.
func openJournal(ctx context.Context, cfg *config.Config) (*journal.Journal, error) {
	if cfg.Batch.DryRun {
		return nil, nil
	}

	jnl := journal.New(cfg.Batch.JournalPath)
	if cfg.Batch.Resume {
		if err := jnl.Load(); err != nil {
			return nil, fmt.Errorf("failed to load journal: %w", err)
		}
		_, done := jnl.Stats()
		if done > 0 {
			logger.Info("Resuming: %d files already processed according to %s", done, jnl.Path())
		}
	} else if err := jnl.Clear(); err != nil {
		return nil, fmt.Errorf("failed to reset journal: %w", err)
	}

	jnl.StartPeriodicSave(ctx, journalSaveInterval)
	return jnl, nil
}

// newSink returns nil for dry runs and for in-place runs, where every takeout
// gets a sink on its own folder.
func newSink(ctx context.Context, cfg *config.Config, jnl *journal.Journal) (processor.Sink, error) {
	switch {
	case cfg.Batch.DryRun, cfg.Output.InPlace:
		return nil, nil
	case cfg.Output.Dir != "":
		return processor.NewDirSink(cfg.Output.Dir), nil
	}

	client, err := s3client.New(ctx, s3client.Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
		Prefix:    cfg.S3.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %s", s3client.FormatError(err))
	}

	runID := uuid.NewString()
	if jnl != nil {
		runID = jnl.RunID()
	}

	retry := processor.DefaultRetryConfig()
	retry.MaxRetries = cfg.Batch.MaxRetries
	return processor.NewS3Sink(client, retry, cfg.Batch.PreserveMetadata, runID), nil
}

// Package processor geotags every photo of a takeout from its sidecar and
// hands the results to a sink.
package processor

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/bstardust/takeout-geotag/internal/adapter/googletakeout"
	"github.com/bstardust/takeout-geotag/internal/config"
	"github.com/bstardust/takeout-geotag/internal/exif"
	"github.com/bstardust/takeout-geotag/internal/geo"
	"github.com/bstardust/takeout-geotag/internal/journal"
	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/bstardust/takeout-geotag/internal/progress"
	"github.com/bstardust/takeout-geotag/internal/worker"
	"github.com/bstardust/takeout-geotag/pkg/common"
	"github.com/bstardust/takeout-geotag/pkg/geotag"
)

// Embedder writes position and time into an encoded image
type Embedder interface {
	EmbedBytes(format geotag.Format, src []byte, pos geo.Position, t time.Time) ([]byte, error)
}

// Source lists sidecar items and reads their media files
type Source interface {
	Name() string
	ListItems() []*googletakeout.Item
	ReadFile(path string) ([]byte, error)
}

// Summary is the outcome of one Run
type Summary struct {
	progress.Stats
	Failures []progress.Failure
}

// Processor handles the geotagging of one takeout
type Processor struct {
	ctx       context.Context
	embedder  Embedder
	source    Source
	sink      Sink
	journal   *journal.Journal
	pool      *worker.Pool
	progress  *progress.Reporter
	config    *config.Config
	keyPrefix string
}

// New creates a new Processor. sink may be nil in dry-run mode and jnl may be
// nil when resuming is not wanted.
func New(ctx context.Context, embedder Embedder, source Source, sink Sink,
	jnl *journal.Journal, pool *worker.Pool, progress *progress.Reporter,
	cfg *config.Config) *Processor {
	return &Processor{
		ctx:      ctx,
		embedder: embedder,
		source:   source,
		sink:     sink,
		journal:  jnl,
		pool:     pool,
		progress: progress,
		config:   cfg,
	}
}

// WithKeyPrefix places every output key below prefix
func (p *Processor) WithKeyPrefix(prefix string) *Processor {
	p.keyPrefix = prefix
	return p
}

// Run processes every item of the source. Per-file failures are recorded in
// the summary; the returned error is only set when the run was cancelled.
func (p *Processor) Run() (Summary, error) {
	items := p.source.ListItems()
	p.progress.Start(len(items))

	var runErr error
	for _, item := range items {
		if err := p.ctx.Err(); err != nil {
			runErr = err
			break
		}

		if err := p.pool.Submit(p.ctx, func() { p.processItem(item) }); err != nil {
			runErr = err
			break
		}
	}
	p.pool.Wait()

	if p.journal != nil {
		if err := p.journal.Save(); err != nil {
			logger.Error("Failed to save journal: %v", err)
		}
	}
	p.progress.Finish()

	return Summary{Stats: p.progress.Stats(), Failures: p.progress.Failures()}, runErr
}

// journalKey identifies an item across runs
func (p *Processor) journalKey(item *googletakeout.Item) string {
	return p.source.Name() + "/" + item.SidecarPath
}

func (p *Processor) processItem(item *googletakeout.Item) {
	name := item.MediaPath
	if name == "" {
		name = item.SidecarPath
	}
	key := path.Join(p.keyPrefix, name)

	if p.journal != nil && p.config.Batch.Resume && p.journal.IsDone(p.journalKey(item)) {
		p.progress.Skip(key, "already processed")
		return
	}
	if item.Err != nil {
		p.progress.Error(key, item.Err)
		return
	}
	if p.config.Batch.Resume && !p.config.Batch.DryRun {
		if ec, ok := p.sink.(existenceChecker); ok {
			exists, err := ec.Exists(p.ctx, key)
			if err != nil {
				logger.Warn("Could not check %s in %s: %v", key, p.sink, err)
			} else if exists {
				p.progress.Skip(key, "already in destination")
				if p.journal != nil {
					p.journal.MarkDone(p.journalKey(item), p.source.Name())
				}
				return
			}
		}
	}

	format, err := geotag.FormatOf(item.MediaPath)
	if err != nil {
		p.progress.Skip(key, err.Error())
		return
	}
	if !item.Metadata.HasLocation() {
		p.progress.Skip(key, "sidecar has no location")
		return
	}
	pos, err := item.Metadata.Position()
	if err != nil {
		p.progress.Skip(key, err.Error())
		return
	}
	takenAt, err := item.Metadata.TakenAt()
	if err != nil {
		p.progress.Error(key, err)
		return
	}

	data, err := p.source.ReadFile(item.MediaPath)
	if err != nil {
		p.progress.Error(key, common.NewMediaError("read", item.MediaPath, common.ErrIO, err))
		return
	}

	if p.config.Batch.SkipTagged && exif.HasGPS(data) {
		p.progress.Skip(key, "already geotagged")
		return
	}

	out, err := p.embedder.EmbedBytes(format, data, pos, takenAt)
	if err != nil {
		var me *common.MediaError
		if errors.As(err, &me) && me.Path == "" {
			me.Path = item.MediaPath
		}
		p.progress.Error(key, err)
		return
	}

	if p.config.Batch.DryRun || p.sink == nil {
		logger.Info("DRY RUN: Would write %s (%d bytes, %s at %s)", key, len(out), pos, takenAt.Format(time.RFC3339))
		p.progress.Complete(key)
		return
	}

	if err := p.sink.Write(p.ctx, key, out, item.Metadata); err != nil {
		p.progress.Error(key, common.NewMediaError("write", key, common.ErrIO, err))
		return
	}

	p.progress.Complete(key)
	if p.journal != nil {
		p.journal.MarkDone(p.journalKey(item), p.source.Name())
	}
}

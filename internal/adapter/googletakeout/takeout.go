package googletakeout

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/bstardust/takeout-geotag/internal/fileinfo"
	"github.com/bstardust/takeout-geotag/internal/fshelper"
	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/bstardust/takeout-geotag/internal/metadata"
)

// Takeout represents a Google Takeout export, either a folder or a zip
type Takeout struct {
	fsys      fshelper.NameFS
	items     []*Item
	extractor *metadata.Extractor
}

// Item is one sidecar paired with the media file it describes. Err is set
// when the pair cannot be processed; such items are reported, not dropped.
type Item struct {
	SidecarPath string
	MediaPath   string
	Metadata    *metadata.Metadata
	Err         error
}

// Open opens the takeout at path and scans it
func Open(ctx context.Context, p string) (*Takeout, error) {
	var fsys fshelper.NameFS
	if strings.EqualFold(path.Ext(p), ".zip") {
		z, err := fshelper.OpenZip(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open takeout: %w", err)
		}
		fsys = z
	} else {
		fsys = fshelper.NewDirFS(p)
	}

	t, err := New(ctx, fsys)
	if err != nil {
		fshelper.CloseAll([]fshelper.NameFS{fsys})
		return nil, err
	}
	return t, nil
}

// New scans fsys for sidecars
func New(ctx context.Context, fsys fshelper.NameFS) (*Takeout, error) {
	t := &Takeout{
		fsys:      fsys,
		extractor: metadata.NewExtractor(),
	}

	if err := t.scanTakeout(ctx); err != nil {
		return nil, fmt.Errorf("failed to scan takeout %s: %w", fsys.Name(), err)
	}
	logger.Info("Found %d sidecars in %s", len(t.items), fsys.Name())
	return t, nil
}

// scanTakeout walks the filesystem in lexical order and pairs every sidecar
// with its media file
func (t *Takeout) scanTakeout(ctx context.Context) error {
	return fs.WalkDir(t.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !fileinfo.IsSidecar(p) {
			return nil
		}

		t.items = append(t.items, t.readItem(p))
		return nil
	})
}

func (t *Takeout) readItem(sidecar string) *Item {
	item := &Item{SidecarPath: sidecar}

	f, err := t.fsys.Open(sidecar)
	if err != nil {
		item.Err = fmt.Errorf("failed to open sidecar: %w", err)
		return item
	}
	defer f.Close()

	meta, err := t.extractor.ExtractFromJSON(f)
	if err != nil {
		item.Err = err
		return item
	}
	item.Metadata = meta

	name := meta.Title
	if name == "" || strings.ContainsAny(name, "/\\") {
		name = fileinfo.SidecarMediaName(sidecar)
	}
	item.MediaPath = path.Join(path.Dir(sidecar), name)

	exists, err := fshelper.Exists(t.fsys, item.MediaPath)
	switch {
	case err != nil:
		item.Err = fmt.Errorf("failed to stat media file %s: %w", item.MediaPath, err)
	case !exists:
		item.Err = fmt.Errorf("media file %s not found", item.MediaPath)
	}
	if item.Err != nil {
		logger.Debug("Sidecar %s: %v", sidecar, item.Err)
	}
	return item
}

// Name returns the name of the underlying filesystem
func (t *Takeout) Name() string {
	return t.fsys.Name()
}

// ListItems returns all sidecar items sorted by sidecar path
func (t *Takeout) ListItems() []*Item {
	return t.items
}

// ReadFile reads a file from the takeout
func (t *Takeout) ReadFile(p string) ([]byte, error) {
	return fs.ReadFile(t.fsys, p)
}

// Close releases the archive if the takeout is a zip
func (t *Takeout) Close() error {
	if c, ok := t.fsys.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

package fshelper

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// NameFS is a filesystem that has a name
type NameFS interface {
	fs.FS
	Name() string
}

// DirFS represents a directory filesystem with a name
type DirFS struct {
	fs.FS
	name string
	path string
}

// Name returns the name of the filesystem
func (d *DirFS) Name() string {
	return d.name
}

// Path returns the directory on disk
func (d *DirFS) Path() string {
	return d.path
}

// NewDirFS returns a named filesystem rooted at dir
func NewDirFS(dir string) *DirFS {
	return &DirFS{FS: os.DirFS(dir), name: filepath.Base(dir), path: dir}
}

// ZipFS represents a zip filesystem with a name
type ZipFS struct {
	*zip.Reader
	name string
	rc   io.Closer
}

// Name returns the name of the filesystem
func (z *ZipFS) Name() string {
	return z.name
}

// Close closes the zip file
func (z *ZipFS) Close() error {
	if z.rc != nil {
		return z.rc.Close()
	}
	return nil
}

// ParsePath parses a list of paths and returns a list of filesystems
func ParsePath(paths []string) ([]NameFS, error) {
	var fsyss []NameFS

	for _, path := range paths {
		// Check if the path is a glob pattern
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %s: %w", path, err)
		}

		if len(matches) == 0 {
			// No matches, try as a direct path
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					return nil, fmt.Errorf("path does not exist: %s", path)
				}
				return nil, fmt.Errorf("error accessing path %s: %w", path, err)
			}
			matches = []string{path}
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				CloseAll(fsyss)
				return nil, fmt.Errorf("error accessing path %s: %w", match, err)
			}

			if info.IsDir() {
				fsyss = append(fsyss, NewDirFS(match))
			} else if strings.HasSuffix(strings.ToLower(match), ".zip") {
				zipFS, err := OpenZip(match)
				if err != nil {
					CloseAll(fsyss)
					return nil, fmt.Errorf("error opening zip file %s: %w", match, err)
				}
				fsyss = append(fsyss, zipFS)
			} else {
				CloseAll(fsyss)
				return nil, fmt.Errorf("unsupported file type: %s", match)
			}
		}
	}

	return fsyss, nil
}

// OpenZip opens a zip file and returns a filesystem
func OpenZip(path string) (*ZipFS, error) {
	zipFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening zip file: %w", err)
	}

	info, err := zipFile.Stat()
	if err != nil {
		zipFile.Close()
		return nil, fmt.Errorf("error getting zip file info: %w", err)
	}

	zipReader, err := zip.NewReader(zipFile, info.Size())
	if err != nil {
		zipFile.Close()
		return nil, fmt.Errorf("error creating zip reader: %w", err)
	}

	return &ZipFS{
		Reader: zipReader,
		name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		rc:     zipFile,
	}, nil
}

// CloseAll closes every filesystem that holds an open file
func CloseAll(fsyss []NameFS) {
	for _, fsys := range fsyss {
		if c, ok := fsys.(io.Closer); ok {
			c.Close()
		}
	}
}

// Exists checks if a path exists
func Exists(fsys fs.FS, path string) (bool, error) {
	_, err := fs.Stat(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// over path, so readers never see a partially written file. Missing parent
// directories are created.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*~")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("error writing %s: %w", tmp.Name(), err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("error setting mode on %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("error syncing %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error replacing %s: %w", path, err)
	}
	return nil
}

package avatar

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// urlPrefix is the route under which disk-stored avatars are served.
const urlPrefix = "/uploads/"

// Disk stores avatars as files in a local directory.
type Disk struct {
	dir string
}

// NewDisk creates a disk backend rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

// Dir returns the directory files are written to.
func (d *Disk) Dir() string { return d.dir }

func (d *Disk) Save(ctx context.Context, contentType string, r io.Reader) (string, error) {
	_ = ctx
	ext, ok := extByContentType[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	name := uuid.New().String() + ext
	path := filepath.Join(d.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write avatar file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close avatar file: %w", err)
	}

	return urlPrefix + name, nil
}

func (d *Disk) Remove(ctx context.Context, ref string) error {
	_ = ctx
	name, ok := strings.CutPrefix(ref, urlPrefix)
	if !ok || name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(d.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove avatar file: %w", err)
	}
	return nil
}

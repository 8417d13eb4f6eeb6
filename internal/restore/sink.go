package restore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Sink receives restored files.
type Sink interface {
	Put(ctx context.Context, name string, r io.Reader, info fs.FileInfo) error
	String() string
}

// DirSink writes files into a local directory, keeping the source
// modification time and permission bits.
type DirSink struct {
	Dir string
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("restore destination is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", dir, err)
	}
	return &DirSink{Dir: dir}, nil
}

func (d *DirSink) String() string { return d.Dir }

// Put copies r to Dir/name through a temporary file so a failed copy never
// leaves a partial file behind.
func (d *DirSink) Put(ctx context.Context, name string, r io.Reader, info fs.FileInfo) error {
	dst := filepath.Join(d.Dir, name)
	tmp, err := os.CreateTemp(d.Dir, "."+name+".*.partial")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

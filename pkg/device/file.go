package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/gp2040ce/bintools/pkg/layout"
	storeerr "github.com/gp2040ce/bintools/pkg/storage/errors"
	"github.com/gp2040ce/bintools/pkg/utils/permissions"
)

// FileDevice is a flash dump on disk. Byte 0 of the file is the flash
// address Base. Writes follow the flash rules: whole erase sectors only.
type FileDevice struct {
	f        *os.File
	path     string
	base     uint32
	readOnly bool
	logger   hclog.Logger
}

// Option configures a FileDevice.
type Option func(*FileDevice)

// WithBase maps the file's first byte to base instead of the RP2040 XIP base.
func WithBase(base uint32) Option {
	return func(d *FileDevice) { d.base = base }
}

// ReadOnly opens the dump for reading only; writes fail.
func ReadOnly() Option {
	return func(d *FileDevice) { d.readOnly = true }
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(d *FileDevice) {
		if l != nil {
			d.logger = l
		}
	}
}

// Open opens a dump file. Unless ReadOnly is given, a missing file is
// created empty and the dump is locked against other writers until Close.
func Open(path string, opts ...Option) (*FileDevice, error) {
	d := &FileDevice{
		path:   path,
		base:   layout.DefaultBase,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}

	flag := os.O_RDWR | os.O_CREATE
	if d.readOnly {
		flag = os.O_RDONLY
	} else if err := acquireLock(path, d.logger); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, flag, permissions.DefaultFilePerms)
	if err != nil {
		if !d.readOnly {
			releaseLock(path, d.logger)
		}
		return nil, fmt.Errorf("failed to open device file: %w", err)
	}
	d.f = f
	d.logger.Debug("🔌 Opened device file", "path", path, "base", fmt.Sprintf("0x%08x", d.base), "read_only", d.readOnly)
	return d, nil
}

// Path returns the backing file.
func (d *FileDevice) Path() string { return d.path }

// Close releases the file and, for a writable device, its lock.
func (d *FileDevice) Close() error {
	err := d.f.Close()
	if !d.readOnly {
		releaseLock(d.path, d.logger)
	}
	return err
}

// Size is the number of flash bytes the dump holds.
func (d *FileDevice) Size() (int64, error) {
	info, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (d *FileDevice) offset(op string, addr uint32, n int) (int64, error) {
	if addr < d.base {
		return 0, &storeerr.TransportError{Op: op, Address: addr, Length: n,
			Cause: fmt.Errorf("below flash base 0x%08x", d.base)}
	}
	return int64(addr - d.base), nil
}

// Read returns n bytes starting at addr. Reading past the end of the dump
// is an error.
func (d *FileDevice) Read(ctx context.Context, addr uint32, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &storeerr.TransportError{Op: "read", Address: addr, Length: n, Cause: err}
	}
	off, err := d.offset("read", addr, n)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, n)
	got, err := d.f.ReadAt(buf, off)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: dump ends after %d bytes", io.ErrUnexpectedEOF, got)
		}
		return nil, &storeerr.TransportError{Op: "read", Address: addr, Length: n, Cause: err}
	}
	d.logger.Trace("📖 Read flash", "address", fmt.Sprintf("0x%08x", addr), "length", n)
	return buf, nil
}

// Write stores data at addr. The address and length must cover whole erase
// sectors. Writing past the end grows the dump, zero filled.
func (d *FileDevice) Write(ctx context.Context, addr uint32, data []byte) error {
	fail := func(cause error) error {
		return &storeerr.TransportError{Op: "write", Address: addr, Length: len(data), Cause: cause}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if d.readOnly {
		return fail(fmt.Errorf("device is read-only"))
	}
	off, err := d.offset("write", addr, len(data))
	if err != nil {
		return err
	}
	if off%layout.EraseSectorSize != 0 || len(data)%layout.EraseSectorSize != 0 {
		return fail(fmt.Errorf("not aligned to %d byte erase sectors", layout.EraseSectorSize))
	}

	if _, err := d.f.WriteAt(data, off); err != nil {
		return fail(err)
	}
	if err := d.f.Sync(); err != nil {
		return fail(err)
	}
	d.logger.Debug("💾 Wrote flash", "address", fmt.Sprintf("0x%08x", addr), "length", len(data))
	return nil
}

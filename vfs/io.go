package vfs

import (
	"github.com/google/memvfs/fdtable"
	"github.com/google/memvfs/metrics"
	"github.com/google/memvfs/permission"
)

// writesFlags reports whether flags could mutate filesystem state, so
// Open can enforce the global write barrier before falling through to
// fdtable (spec §5: frozen filesystems reject mutation with EROFS).
func writesFlags(flags fdtable.Flags) bool {
	am := flags & (fdtable.O_WRONLY | fdtable.O_RDWR)
	return am != 0 || flags&(fdtable.O_CREAT|fdtable.O_TRUNC) != 0
}

// Open implements open(path, flags, mode) (spec §4.5).
func (fs *Filesystem) Open(path string, flags fdtable.Flags, mode uint32, caller permission.Caller) (*fdtable.Descriptor, error) {
	if writesFlags(flags) {
		if err := fs.Guard.CheckWritable("open", path); err != nil {
			return nil, err
		}
	}
	d, err := fs.Table.Open(path, flags, mode, caller)
	if err != nil {
		return nil, err
	}
	fs.record(func(r *metrics.Recorder) { r.IncOpens() })
	return d, nil
}

// Read implements read(fd, dst, dstOff, len, pos).
func (fs *Filesystem) Read(d *fdtable.Descriptor, dst []byte, pos *int64) (int, error) {
	n, err := fs.Table.Read(d, dst, pos)
	if err == nil {
		fs.record(func(r *metrics.Recorder) { r.IncReads() })
	}
	return n, err
}

// Write implements write(fd, src, srcOff, len, pos).
func (fs *Filesystem) Write(d *fdtable.Descriptor, src []byte, pos *int64) (int, error) {
	if err := fs.Guard.CheckWritable("write", d.Path); err != nil {
		return 0, err
	}
	n, err := fs.Table.Write(d, src, pos)
	if err == nil {
		fs.record(func(r *metrics.Recorder) { r.IncWrites() })
	}
	return n, err
}

func (fs *Filesystem) Close(fd uint64) error { return fs.Table.Close(fd) }

func (fs *Filesystem) Fsync(d *fdtable.Descriptor) error     { return fs.Table.Fsync(d, true) }
func (fs *Filesystem) Fdatasync(d *fdtable.Descriptor) error { return fs.Table.Fdatasync(d) }

func (fs *Filesystem) Ftruncate(d *fdtable.Descriptor, length int64) error {
	if err := fs.Guard.CheckWritable("ftruncate", d.Path); err != nil {
		return err
	}
	return fs.Table.Ftruncate(d, length)
}

// ReadFile is the readFile(path) convenience wrapper (spec §4.5): open,
// read to completion, close.
func (fs *Filesystem) ReadFile(path string, caller permission.Caller) ([]byte, error) {
	d, err := fs.Open(path, fdtable.O_RDONLY, 0, caller)
	if err != nil {
		return nil, err
	}
	defer fs.Close(d.FD)

	st := d.Node.Stat()
	buf := make([]byte, st.Size)
	pos := int64(0)
	for {
		n, err := fs.Read(d, buf[pos:], nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		pos += int64(n)
	}
	return buf[:pos], nil
}

// WriteFile is the writeFile(path, content) convenience wrapper: open
// (creating/truncating), write the full content, close.
func (fs *Filesystem) WriteFile(path string, content []byte, mode uint32, caller permission.Caller) error {
	d, err := fs.Open(path, fdtable.O_WRONLY|fdtable.O_CREAT|fdtable.O_TRUNC, mode, caller)
	if err != nil {
		return err
	}
	defer fs.Close(d.FD)

	if _, err := fs.Write(d, content, nil); err != nil {
		return err
	}
	return nil
}

// AppendFile is the appendFile(path, content) convenience wrapper:
// "append mode always writes at end-of-file" (spec §4.5).
func (fs *Filesystem) AppendFile(path string, content []byte, mode uint32, caller permission.Caller) error {
	d, err := fs.Open(path, fdtable.O_WRONLY|fdtable.O_CREAT|fdtable.O_APPEND, mode, caller)
	if err != nil {
		return err
	}
	defer fs.Close(d.FD)

	if _, err := fs.Write(d, content, nil); err != nil {
		return err
	}
	return nil
}

package inode

// Stat is the record returned by stat/lstat/fstat — every field spec §6
// requires for poll-diffing equivalence.
type Stat struct {
	Dev, Ino                              uint64
	Mode                                  uint32
	Nlink                                 uint32
	Uid, Gid                              uint32
	Rdev                                  uint64
	Size                                  int64
	Blksize                               int64
	Blocks                                int64
	AtimeMs, MtimeMs, CtimeMs, BirthtimeMs int64
}

const defaultBlksize = 4096

// Stat builds a Stat record for the inode without following symlinks and
// without triggering materialisation: for a symlink, Size is the length of
// the stored target; for a regular file, Size is the materialised byte
// length if known, else the cached pre-materialisation size.
func (n *Inode) Stat() Stat {
	s := Stat{
		Dev:         n.header.Dev,
		Ino:         n.header.Ino,
		Mode:        n.header.Mode,
		Nlink:       n.header.Nlink,
		Uid:         n.header.Uid,
		Gid:         n.header.Gid,
		Blksize:     defaultBlksize,
		AtimeMs:     n.header.AtimeMs,
		MtimeMs:     n.header.MtimeMs,
		CtimeMs:     n.header.CtimeMs,
		BirthtimeMs: n.header.BirthtimeMs,
	}

	switch n.kind {
	case KindRegular:
		s.Size = n.Size()
	case KindSymlink:
		s.Size = int64(len(n.symlink.target))
	case KindDirectory:
		s.Size = 0
	}

	return s
}

func (s Stat) IsDir() bool     { return s.Mode&TypeMask == TypeDir }
func (s Stat) IsFile() bool    { return s.Mode&TypeMask == TypeReg }
func (s Stat) IsSymlink() bool { return s.Mode&TypeMask == TypeLnk }

package inode

import (
	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/pathutil"
)

// Store allocates inodes for a single filesystem instance. Its device id
// is unique to the instance; the inode id counter behind NextIno is shared
// process-wide so ids never collide across filesystem instances (spec
// §3: "Counters are process-wide across all filesystem instances").
type Store struct {
	Dev        uint64
	Clock      clock.Clock
	Comparator pathutil.Comparator
}

// NewStore mints a fresh device id and returns a Store bound to it.
func NewStore(clk clock.Clock, cmp pathutil.Comparator) *Store {
	return &Store{Dev: NextDev(), Clock: clk, Comparator: cmp}
}

func (s *Store) now() int64 { return clock.NowMs(s.Clock) }

func (s *Store) newHeader(typeBits, perm uint32, uid, gid uint32, nlink uint32) Header {
	now := s.now()
	return Header{
		Dev:          s.Dev,
		Ino:          NextIno(),
		Mode:         typeBits | (perm & 0o7777),
		Nlink:        nlink,
		Uid:          uid,
		Gid:          gid,
		AtimeMs:      now,
		MtimeMs:      now,
		CtimeMs:      now,
		BirthtimeMs:  now,
	}
}

// NewDirectory allocates a materialised, empty directory inode.
func (s *Store) NewDirectory(perm, uid, gid uint32) *Inode {
	n := &Inode{
		kind:   KindDirectory,
		header: s.newHeader(TypeDir, perm, uid, gid, 2),
		dir:    &dirData{children: NewChildMap(s.Comparator)},
	}
	return n
}

// NewMountDirectory allocates a directory inode whose children are faulted
// in lazily from an external resolver (spec §4.9).
func (s *Store) NewMountDirectory(perm, uid, gid uint32, source string, resolver ExternalResolver) *Inode {
	n := &Inode{
		kind:   KindDirectory,
		header: s.newHeader(TypeDir, perm, uid, gid, 2),
		dir:    &dirData{source: source, resolver: resolver},
	}
	return n
}

// NewShadowDirectory allocates a directory inode that lazily copies from a
// frozen shadow root (spec §4.8).
func (s *Store) NewShadowDirectory(shadowRoot *Inode) *Inode {
	hdr := shadowRoot.Header()
	hdr.Dev, hdr.Ino = s.Dev, NextIno()
	n := &Inode{
		kind:   KindDirectory,
		header: hdr,
		dir:    &dirData{shadow: shadowRoot},
	}
	return n
}

// NewRegularFile allocates a regular file inode with empty (materialised)
// content.
func (s *Store) NewRegularFile(perm, uid, gid uint32) *Inode {
	n := &Inode{
		kind:   KindRegular,
		header: s.newHeader(TypeReg, perm, uid, gid, 1),
		file:   &fileData{bytes: []byte{}},
	}
	return n
}

// NewMountFile allocates a regular file inode whose bytes are faulted in
// lazily from an external resolver.
func (s *Store) NewMountFile(perm, uid, gid uint32, size int64, source string, resolver ExternalResolver) *Inode {
	n := &Inode{
		kind:   KindRegular,
		header: s.newHeader(TypeReg, perm, uid, gid, 1),
		file:   &fileData{source: source, resolver: resolver, size: &size},
	}
	return n
}

// NewShadowFile allocates a regular file inode that lazily copies its
// bytes from a frozen shadow root.
func (s *Store) NewShadowFile(shadowRoot *Inode) *Inode {
	hdr := shadowRoot.Header()
	hdr.Dev, hdr.Ino = s.Dev, NextIno()
	n := &Inode{
		kind:   KindRegular,
		header: hdr,
		file:   &fileData{shadow: shadowRoot},
	}
	return n
}

// NewSymlink allocates a symlink inode with the given verbatim target.
func (s *Store) NewSymlink(target string, uid, gid uint32) *Inode {
	n := &Inode{
		kind:    KindSymlink,
		header:  s.newHeader(TypeLnk, 0o666, uid, gid, 1),
		symlink: &symlinkData{target: target},
	}
	return n
}

// NewShadowSymlink allocates a symlink inode that copies its target and
// header from a frozen shadow root.
func (s *Store) NewShadowSymlink(shadowRoot *Inode) *Inode {
	hdr := shadowRoot.Header()
	hdr.Dev, hdr.Ino = s.Dev, NextIno()
	n := &Inode{
		kind:    KindSymlink,
		header:  hdr,
		symlink: &symlinkData{target: shadowRoot.Target(), shadow: shadowRoot},
	}
	return n
}

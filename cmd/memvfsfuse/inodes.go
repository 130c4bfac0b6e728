package main

import (
	"os"
	"strings"
	"time"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/google/memvfs/inode"
)

// inodeTable maps between the path-addressed world memvfs lives in and the
// numeric fuseops.InodeID space the kernel expects, minting one ID per
// distinct path the kernel has looked up and never reusing it for a
// different path until a Rename rewrites the mapping (mirroring gcsfuse's
// fs.inodes/fs.handles tables, but keyed by path instead of by backing
// object name since memvfs has no generation-numbered objects to key on).
type inodeTable struct {
	idByPath map[string]fuseops.InodeID
	pathByID map[fuseops.InodeID]string
	nextID   fuseops.InodeID
}

func newInodeTable() *inodeTable {
	t := &inodeTable{
		idByPath: make(map[string]fuseops.InodeID),
		pathByID: make(map[fuseops.InodeID]string),
		nextID:   fuseops.RootInodeID + 1,
	}
	t.idByPath["/"] = fuseops.RootInodeID
	t.pathByID[fuseops.RootInodeID] = "/"
	return t
}

// idForPath returns the stable ID for path, minting one on first sight.
func (t *inodeTable) idForPath(path string) fuseops.InodeID {
	if id, ok := t.idByPath[path]; ok {
		return id
	}
	id := t.nextID
	t.nextID++
	t.idByPath[path] = id
	t.pathByID[id] = path
	return id
}

func (t *inodeTable) pathForID(id fuseops.InodeID) (string, bool) {
	p, ok := t.pathByID[id]
	return p, ok
}

// forget drops the mapping for id, matching ForgetInodeOp.
func (t *inodeTable) forget(id fuseops.InodeID) {
	if id == fuseops.RootInodeID {
		return
	}
	if p, ok := t.pathByID[id]; ok {
		delete(t.pathByID, id)
		delete(t.idByPath, p)
	}
}

// rename rewrites every path under oldPath (inclusive) to live under
// newPath, preserving the IDs already minted for them so the kernel's
// dentry cache doesn't see an inode identity change across a rename.
func (t *inodeTable) rename(oldPath, newPath string) {
	for p, id := range t.idByPath {
		if p != oldPath && !strings.HasPrefix(p, oldPath+"/") {
			continue
		}
		rewritten := newPath + p[len(oldPath):]
		delete(t.idByPath, p)
		t.idByPath[rewritten] = id
		t.pathByID[id] = rewritten
	}
}

// statToAttributes converts memvfs's raw stat record into the
// fuseops.InodeAttributes the kernel caches, folding the type bits memvfs
// keeps in Mode into the os.FileMode bits the FUSE protocol expects.
func statToAttributes(st inode.Stat) fuseops.InodeAttributes {
	perm := os.FileMode(st.Mode & 0o7777)
	var typeBits os.FileMode
	switch {
	case st.IsDir():
		typeBits = os.ModeDir
	case st.IsSymlink():
		typeBits = os.ModeSymlink
	}

	return fuseops.InodeAttributes{
		Size:   uint64(st.Size),
		Nlink:  st.Nlink,
		Mode:   typeBits | perm,
		Uid:    st.Uid,
		Gid:    st.Gid,
		Atime:  msToTime(st.AtimeMs),
		Mtime:  msToTime(st.MtimeMs),
		Ctime:  msToTime(st.CtimeMs),
		Crtime: msToTime(st.BirthtimeMs),
	}
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

package inode

// mustDir/mustFile/mustSymlink panic on programmer error (calling a
// variant accessor against the wrong kind); callers above this package are
// expected to check Kind()/IsDir()/etc first, exactly as the resolver and
// directory ops do.

func (n *Inode) mustDir() *dirData {
	if n.dir == nil {
		panic("inode: not a directory")
	}
	return n.dir
}

func (n *Inode) mustFile() *fileData {
	if n.file == nil {
		panic("inode: not a regular file")
	}
	return n.file
}

func (n *Inode) mustSymlink() *symlinkData {
	if n.symlink == nil {
		panic("inode: not a symlink")
	}
	return n.symlink
}

// --- directory ---

// ChildrenIfMaterialized returns the children map without triggering
// materialisation, or nil if the directory hasn't been materialised yet.
func (n *Inode) ChildrenIfMaterialized() *ChildMap {
	return n.mustDir().children
}

// EnsureDirMaterialized returns the directory's children, invoking
// materialize exactly once if they have not yet been faulted in (spec
// §3: "the resolver is consulted exactly once and the source/resolver
// fields are then cleared").
func (n *Inode) EnsureDirMaterialized(materialize func() (*ChildMap, error)) (*ChildMap, error) {
	d := n.mustDir()
	if d.children != nil {
		return d.children, nil
	}
	cm, err := materialize()
	if err != nil {
		return nil, err
	}
	d.children = cm
	d.source = ""
	d.resolver = nil
	return cm, nil
}

// DirSource returns the pending (source, resolver) pair for a mount point
// that has not yet been materialised.
func (n *Inode) DirSource() (source string, resolver ExternalResolver, ok bool) {
	d := n.mustDir()
	if d.children != nil || d.resolver == nil {
		return "", nil, false
	}
	return d.source, d.resolver, true
}

// --- regular file ---

// BytesIfMaterialized returns the file's bytes without triggering
// materialisation, or nil if not yet materialised.
func (n *Inode) BytesIfMaterialized() []byte {
	return n.mustFile().bytes
}

// EnsureFileMaterialized returns the file's bytes, invoking materialize
// exactly once if they have not yet been faulted in.
func (n *Inode) EnsureFileMaterialized(materialize func() ([]byte, error)) ([]byte, error) {
	f := n.mustFile()
	if f.bytes != nil {
		return f.bytes, nil
	}
	b, err := materialize()
	if err != nil {
		return nil, err
	}
	f.bytes = b
	f.source = ""
	f.resolver = nil
	sz := int64(len(b))
	f.size = &sz
	return f.bytes, nil
}

// FileSource returns the pending (source, resolver) pair for a mounted
// file that has not yet been materialised.
func (n *Inode) FileSource() (source string, resolver ExternalResolver, ok bool) {
	f := n.mustFile()
	if f.bytes != nil || f.resolver == nil {
		return "", nil, false
	}
	return f.source, f.resolver, true
}

// SetBytes publishes b as the file's new materialised content (used by
// fsync/truncate to publish a descriptor's staged buffer).
func (n *Inode) SetBytes(b []byte) {
	f := n.mustFile()
	f.bytes = b
	sz := int64(len(b))
	f.size = &sz
}

// Size returns len(bytes) once content is materialised; otherwise the
// cached size (set from mount stat results) if known; otherwise 0.
func (n *Inode) Size() int64 {
	f := n.mustFile()
	if f.bytes != nil {
		return int64(len(f.bytes))
	}
	if f.size != nil {
		return *f.size
	}
	return 0
}

// --- symlink ---

func (n *Inode) Target() string { return n.mustSymlink().target }

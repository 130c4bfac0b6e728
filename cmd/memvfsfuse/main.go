package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jacobsa/fuse"

	"github.com/google/memvfs/bulkapply"
	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/config"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/vfs"
)

var (
	filemapPath     = flag.String("file-map", "", "YAML FileMap to preload before mounting")
	caseInsensitive = flag.Bool("case-insensitive", false, "use a case-insensitive path comparator")
	rootMode        = flag.Uint("root-mode", 0o755, "permission bits for the filesystem root (octal needs a leading 0, e.g. 0755)")
	fsName          = flag.String("fs-name", "memvfs", "FUSE filesystem name reported to the kernel")
	readOnly        = flag.Bool("read-only", false, "freeze the filesystem after preloading it")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: memvfsfuse [flags] <mountpoint>")
		os.Exit(1)
	}
	mountPoint := flag.Arg(0)

	cmp := pathutil.NewCaseSensitiveComparator()
	if *caseInsensitive {
		cmp = pathutil.NewCaseInsensitiveComparator()
	}
	vfsys := vfs.New(&clock.RealClock{}, cmp, uint32(*rootMode))
	caller := permission.Caller{Uid: 0, Gid: 0}

	if *filemapPath != "" {
		m, err := config.LoadFileMap(*filemapPath)
		if err != nil {
			log.Fatalf("loading file map: %v", err)
		}
		if err := bulkapply.Apply(vfsys, "/", m, caller); err != nil {
			log.Fatalf("applying file map: %v", err)
		}
	}

	if *readOnly {
		vfsys.MakeReadonly()
	}

	server := newFileSystem(vfsys, caller)

	mountCfg := &fuse.MountConfig{
		FSName:  *fsName,
		Subtype: "memvfs",
		// Disable writeback caching so that attribute changes (chmod/chown/
		// truncate) are visible to the next lookup immediately rather than
		// batched behind the page cache.
		DisableWritebackCaching: true,
	}

	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		log.Fatalf("mount: %v", err)
	}

	if err := mfs.Join(context.Background()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

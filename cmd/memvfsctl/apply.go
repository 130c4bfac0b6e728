package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/google/memvfs/bulkapply"
	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/config"
	"github.com/google/memvfs/pathutil"
	"github.com/google/memvfs/permission"
	"github.com/google/memvfs/vfs"
)

var applyCmd = &cobra.Command{
	Use:   "apply <filemap.yaml> <root>",
	Short: "Apply a declarative FileMap to a fresh in-memory filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filemapPath, root := args[0], args[1]

		m, err := config.LoadFileMap(filemapPath)
		if err != nil {
			return fmt.Errorf("loading file map: %w", err)
		}

		cmp := pathutil.NewCaseSensitiveComparator()
		if mountConfig.FileSystem.CaseInsensitive {
			cmp = pathutil.NewCaseInsensitiveComparator()
		}
		fs := vfs.New(&clock.RealClock{}, cmp, uint32(mountConfig.FileSystem.RootMode))
		caller := permission.Caller{Uid: 0, Gid: 0}

		if err := bulkapply.Apply(fs, root, m, caller); err != nil {
			return fmt.Errorf("applying file map: %w", err)
		}

		cmd.Printf("applied %s under %s\n", filemapPath, root)
		return nil
	},
}

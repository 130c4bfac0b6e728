package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/logging"
	"github.com/google/memvfs/pollwatch"
)

var watchIntervalMs int64

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Poll-watch a real filesystem path and log changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		logger, _ := logging.New(logging.Options{
			Severity:   logging.Severity(mountConfig.Logging.Severity),
			LogFile:    mountConfig.Logging.LogFile,
			MaxSizeMb:  mountConfig.Logging.MaxSizeMb,
			MaxBackups: mountConfig.Logging.MaxBackups,
			MaxAgeDays: mountConfig.Logging.MaxAgeDays,
		})
		runID := uuid.NewString()

		interval := time.Duration(watchIntervalMs) * time.Millisecond
		if watchIntervalMs == 0 {
			interval = time.Duration(mountConfig.Watch.IntervalMs) * time.Millisecond
		}

		watcher := pollwatch.New(&clock.RealClock{}, osStat)
		watcher.WatchFile(path, interval, func(current, previous inode.Stat) {
			logger.Info("change detected", "run_id", runID, "path", path,
				"size", current.Size, "mtime_ms", current.MtimeMs)
		})

		logger.Info("watching", "run_id", runID, "path", path, "interval", interval)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		watcher.UnwatchFile(path)
		return nil
	},
}

// osStat adapts os.Lstat to pollwatch.StatFunc against a real path.
func osStat(path string) (inode.Stat, bool) {
	fi, err := os.Lstat(path)
	if err != nil {
		return inode.Stat{}, false
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	mode := uint32(fi.Mode().Perm())
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		mode |= unix.S_IFLNK
	case fi.IsDir():
		mode |= unix.S_IFDIR
	default:
		mode |= unix.S_IFREG
	}

	s := inode.Stat{
		Mode:    mode,
		Size:    fi.Size(),
		MtimeMs: fi.ModTime().UnixMilli(),
	}
	if ok {
		s.Ino = st.Ino
		s.Nlink = uint32(st.Nlink)
		s.Uid = st.Uid
		s.Gid = st.Gid
	}
	return s, true
}

func init() {
	watchCmd.Flags().Int64Var(&watchIntervalMs, "interval-ms", 0, "poll interval in milliseconds (defaults to config)")
}

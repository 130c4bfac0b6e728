// Command memvfsctl is memvfs's administrative CLI: it applies a
// declarative FileMap to a fresh in-memory filesystem, serves prometheus
// metrics over HTTP, or watches a real path with the poll-based watcher,
// following the cobra command-tree / viper-config pattern the teacher
// uses for its own mount CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/google/memvfs/config"
)

var (
	cfgFile      string
	logFile      string
	logSeverity  string
	mountConfig  config.Config
	bindErr      error
	unmarshalErr error
)

var rootCmd = &cobra.Command{
	Use:   "memvfsctl",
	Short: "Administer in-memory memvfs filesystems",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if unmarshalErr != nil {
			return fmt.Errorf("decoding config: %w", unmarshalErr)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	mountConfig = config.Defaults()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	flags.StringVar(&logFile, "log-file", "", "rotate logs through this file instead of stderr")
	flags.StringVar(&logSeverity, "log-severity", "INFO", "TRACE|DEBUG|INFO|WARNING|ERROR|OFF")
	flags.Bool("case-insensitive", false, "use a case-insensitive path comparator")
	flags.String("root-mode", "755", "octal permission bits for the filesystem root")

	bindErr = bindPFlags(flags)

	rootCmd.AddCommand(applyCmd, serveMetricsCmd, watchCmd)
	cobra.OnInitialize(initConfig)
}

// bindPFlags binds every persistent flag that maps 1:1 onto a Config key,
// the way the teacher's cfg.BindFlags does for its own flag set.
func bindPFlags(flags *pflag.FlagSet) error {
	for flagName, viperKey := range map[string]string{
		"case-insensitive": "file-system.case-insensitive",
		"root-mode":        "file-system.root-mode",
		"log-file":         "logging.log-file",
		"log-severity":     "logging.severity",
	} {
		if err := viper.BindPFlag(viperKey, flags.Lookup(flagName)); err != nil {
			return fmt.Errorf("binding --%s: %w", flagName, err)
		}
	}
	return nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			unmarshalErr = fmt.Errorf("reading config file: %w", err)
			return
		}
	}
	unmarshalErr = viper.Unmarshal(&mountConfig, viper.DecodeHook(config.DecodeHook()))
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aretw0/witmorph/internal/config"
	"github.com/aretw0/witmorph/internal/logging"
)

// flagKeys binds command-line flags to config keys so a flag set on the
// command line wins over witmorph.yaml and WITMORPH_* variables.
var flagKeys = map[string]string{
	"log-level":               "log.level",
	"store-driver":            "store.driver",
	"store-dsn":               "store.dsn",
	"archive-driver":          "archive.driver",
	"archive-path":            "archive.path",
	"progress-driver":         "progress.driver",
	"progress-path":           "progress.path",
	"redis-addr":              "redis.addr",
	"lock":                    "redis.lock",
	"metrics-addr":            "metrics.addr",
	"destroy-unmapped-states": "planner.destroy_unmapped_states",
	"parallel":                "planner.parallel",
	"workers":                 "planner.workers",
}

var (
	cfgFile string
	cfg     config.Config
	logger  = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "witmorph",
	Short: "witmorph plans and applies process template migrations",
	Long: `witmorph compares two versions of a process template under an explicit
mapping and computes an ordered plan of atomic actions: renames first,
then exports, copies and state rewrites, and destruction last.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New(cfgFile)
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		level, err := logging.ParseLevel(loaded.Log.Level)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.New(level)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./witmorph.yaml or $HOME/.witmorph/witmorph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

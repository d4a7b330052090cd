package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jamesainslie/sift/pkg/sift/config"
	"github.com/jamesainslie/sift/pkg/sift/report"
)

var (
	cfgFile  string
	verbose  bool
	quiet    bool
	settings *viper.Viper
	cfg      *config.Config

	rootCmd = &cobra.Command{
		Use:   "sift",
		Short: "Find files by content hash",
		Long: `Sift finds every file under one or more directories whose SHA-256 digest
equals a target hash. Files hashed and found not to match are remembered in
a cache so repeat searches can be answered without touching the disk.

Examples:
  sift hash ~/Downloads/report.pdf          # Print the hash of a file
  sift search ~ --hash <sha256>             # Full scan of the home directory
  sift search /data --hash <sha256> --live  # Full scan with a live feed
  sift smart ~ --hash <sha256>              # Ask the cache first
  sift cache stats                          # Show cache contents
  sift history                              # View past scans`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

// flagKeys maps command-line flags to configuration keys. Flags only
// override the configuration when set explicitly.
var flagKeys = map[string]string{
	"workers":       "workers",
	"queue-size":    "queue_size",
	"min-size":      "min_size",
	"ext":           "extensions",
	"exclude":       "exclude",
	"chunk-size":    "digest.chunk_size",
	"cache-backend": "cache.backend",
	"cache-path":    "cache.path",
	"log-level":     "logging.level",
	"output":        "output.format",
	"fallback":      "smart.fallback",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/sift/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "minimal output")
	pf.String("cache-backend", "", "cache store: badger or sqlite")
	pf.String("cache-path", "", "cache location (default under $XDG_DATA_HOME/sift)")
	pf.String("log-level", "", "log file level: debug, info, warn, error")
}

// setup loads configuration, applies flag overrides and starts logging.
func setup(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	c, err := config.Decode(v)
	if err != nil {
		return err
	}
	settings, cfg = v, c

	return initLogging(c, false)
}

// unboundAnnotation marks a flag that shares a name in flagKeys but is local
// to its command and never feeds the configuration.
const unboundAnnotation = "sift_unbound"

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if _, ok := f.Annotations[unboundAnnotation]; ok {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr if quiet mode is not enabled. Stdout
// is reserved for reports.
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, report.ErrorStyle.Render("Error: ")+fmt.Sprintf(format, args...))
}

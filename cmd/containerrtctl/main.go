package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/containerrt/pkg/launcher"
	"github.com/cuemby/containerrt/pkg/log"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	// Every container process launched by pkg/launcher is this same binary
	// re-executed with argv[0] == childinit.Marker; dispatch to the child-init
	// path before cobra, flags, or any other normal startup machinery runs.
	if launcher.IsReexec() {
		launcher.RunReexec()
		return
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "containerrtctl",
	Short: "containerrtctl - a smoke-test harness for the containerrt engine library",
	Long: `containerrtctl drives pkg/registry and pkg/container directly from a
single process to exercise the container lifecycle end to end: create,
start, observe events, stop, and remove. It is not a daemon and does not
expose a remote API; every run's state lives only in that run's memory.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("containerrtctl version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}

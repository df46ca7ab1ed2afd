package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cuemby/containerrt/pkg/config"
	"github.com/cuemby/containerrt/pkg/events"
	"github.com/cuemby/containerrt/pkg/registry"
	"github.com/cuemby/containerrt/pkg/supervisor"
)

var listCmd = &cobra.Command{
	Use:   "list -f <file> [-f <file> ...]",
	Short: "Create (but do not start) containers from one or more config files and list the registry",
	Long: `list demonstrates the registry's id/name allocation and List(all) filter
without requiring root: create never touches a cgroup or launches a
process, only start does. Every config file given is registered, then listed
with its allocated id, name, state, and configured memory limit.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringArrayP("file", "f", nil, "container config YAML file (repeatable)")
}

func runList(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringArray("file")
	if len(files) == 0 {
		return fmt.Errorf("at least one --file is required")
	}

	bus := events.NewBus(64)
	defer bus.Stop()
	reg := registry.New(bus, supervisor.New())

	memoryLimits := make(map[string]int64, len(files))
	for _, f := range files {
		cfg, err := config.Load(f)
		if err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
		c, err := reg.Create(*cfg)
		if err != nil {
			return fmt.Errorf("create from %s: %w", f, err)
		}
		memoryLimits[c.ID()] = cfg.Resources.MemoryLimit
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tMEMORY LIMIT")
	for _, c := range reg.List(true) {
		limit := "unlimited"
		if v := memoryLimits[c.ID()]; v > 0 {
			limit = humanize.IBytes(uint64(v))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID()[:12], c.Name(), c.State(), limit)
	}
	return w.Flush()
}

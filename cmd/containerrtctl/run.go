package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/containerrt/pkg/config"
	"github.com/cuemby/containerrt/pkg/events"
	"github.com/cuemby/containerrt/pkg/registry"
	"github.com/cuemby/containerrt/pkg/supervisor"
	"github.com/cuemby/containerrt/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run -f <file>",
	Short: "Create, start, and run a single container to completion",
	Long: `run wires one event bus, one supervisor, and one registry, creates a
container from the given config file, starts it, streams its lifecycle
events to stdout, waits up to --wait-timeout for it to reach STOPPED
(stopping it if it has not), then removes it. This is
the whole create/start/stop/remove path exercised end to end in a single
process, per the engine's stop(timeout_s) and container.<state> event
contracts.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "container config YAML file (required)")
	runCmd.Flags().Int("stop-timeout", 5, "seconds to wait for graceful stop before SIGKILL")
	runCmd.Flags().Int("wait-timeout", 30, "seconds to wait for the container to exit on its own")
	_ = runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	stopTimeout, _ := cmd.Flags().GetInt("stop-timeout")
	waitTimeout, _ := cmd.Flags().GetInt("wait-timeout")

	cfg, err := config.Load(file)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bus := events.NewBus(256)
	defer bus.Stop()
	bus.Subscribe("container.*", events.Normal, func(e *events.Event) {
		fmt.Printf("[event] %s %v\n", e.Type, metaStrings(e.Metadata))
	})

	sup := supervisor.New()
	reg := registry.New(bus, sup)

	c, err := reg.Create(*cfg)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	fmt.Printf("created container id=%s name=%s state=%s\n", c.ID(), c.Name(), c.State())

	if err := c.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	fmt.Printf("started pid=%d\n", c.PID())

	if err := reg.WaitForContainer(c.ID(), types.StateStopped, waitTimeout); err != nil {
		fmt.Println("wait-timeout reached, stopping")
		if err := c.Stop(stopTimeout); err != nil {
			return fmt.Errorf("stop: %w", err)
		}
	}

	bus.Flush()
	fmt.Printf("finished state=%s exit_code=%d\n", c.State(), c.ExitCode())

	if err := c.Remove(false); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	reg.CleanupRemoved()
	fmt.Println("removed")
	return nil
}

func metaStrings(meta map[string]events.MetaValue) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v.String()
	}
	return out
}

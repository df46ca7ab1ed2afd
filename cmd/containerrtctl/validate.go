package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/containerrt/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate -f <file>",
	Short: "Validate a container config file without creating anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		cfg, err := config.Load(file)
		if err != nil {
			return err
		}
		fmt.Printf("ok: image=%s name=%s\n", cfg.Image, cfg.Name)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringP("file", "f", "", "container config YAML file (required)")
}

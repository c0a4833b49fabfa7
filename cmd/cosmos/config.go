package main

import (
	"fmt"

	"github.com/intrntsrfr/cosmos/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		masked := cfg.Masked()
		out, err := yaml.Marshal(&masked)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))

		for _, e := range cfg.Validate() {
			fmt.Fprintf(cmd.ErrOrStderr(), "invalid: %v\n", e)
		}
		return nil
	},
}

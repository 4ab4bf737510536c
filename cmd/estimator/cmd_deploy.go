// cmd/estimator/cmd_deploy.go
package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"offer-estimation/internal/common/camunda"
)

func newDeployCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy [FILE.bpmn...]",
		Short: "Deploy BPMN processes to the Zeebe broker (default: bpmn/*.bpmn)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Camunda.BrokerAddress == "" {
				return fmt.Errorf("camunda.broker_address is required to deploy")
			}

			paths := args
			if len(paths) == 0 {
				paths, err = filepath.Glob(filepath.Join("bpmn", "*.bpmn"))
				if err != nil {
					return err
				}
				if len(paths) == 0 {
					return fmt.Errorf("no BPMN files found in bpmn/")
				}
			}

			client, err := camunda.NewClient(cfg.Camunda)
			if err != nil {
				return err
			}
			defer client.Close()

			processes, err := client.Deploy(cmd.Context(), paths...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"resources": paths,
				"processes": processes,
			})
		},
	}
}

// cmd/estimator/cmd_submit.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"offer-estimation/internal/common/camunda"
)

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		file      string
		processID string
		offerID   string
	)
	cmd := &cobra.Command{
		Use:   "submit [description...]",
		Short: "Start an estimation process instance on the Zeebe broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if s.cfg.Camunda.BrokerAddress == "" {
				return fmt.Errorf("camunda.broker_address is required to submit")
			}
			description, err := readDescription(cmd, args, file)
			if err != nil {
				return err
			}

			client, err := camunda.NewClient(s.cfg.Camunda)
			if err != nil {
				return err
			}
			defer client.Close()

			key, err := client.StartProcess(cmd.Context(), processID, map[string]interface{}{
				"offerId":     offerID,
				"description": description,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"processInstanceKey": key,
				"bpmnProcessId":      processID,
				"offerId":            offerID,
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "Read the description from a file")
	f.StringVar(&processID, "process-id", "offer-estimation", "BPMN process id")
	f.StringVar(&offerID, "offer-id", "", "Offer the estimate belongs to")
	_ = cmd.MarkFlagRequired("offer-id")
	return cmd
}

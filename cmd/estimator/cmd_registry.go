// cmd/estimator/cmd_registry.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"offer-estimation/pkg/registry"
)

const defaultRegistryPath = "configs/activity-registry.json"

type registryFlags struct {
	path string
}

func (f *registryFlags) resolve(opts *rootOptions) (string, error) {
	if f.path != "" {
		return f.path, nil
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.App.ActivityRegistry != "" {
		return cfg.App.ActivityRegistry, nil
	}
	return defaultRegistryPath, nil
}

func newRegistryCmd(opts *rootOptions) *cobra.Command {
	flags := &registryFlags{}
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and maintain the activity registry",
	}
	cmd.PersistentFlags().StringVar(&flags.path, "path", "", "Registry file (default: app.activity_registry)")
	cmd.AddCommand(
		newRegistryValidateCmd(opts, flags),
		newRegistryListCmd(opts, flags),
		newRegistryUpdateCmd(opts, flags),
	)
	return cmd
}

func newRegistryValidateCmd(opts *rootOptions, flags *registryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the registry for missing fields and duplicates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := flags.resolve(opts)
			if err != nil {
				return err
			}
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Validate(); err != nil {
				return fmt.Errorf("registry validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}
}

func newRegistryListCmd(opts *rootOptions, flags *registryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the registered activities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := flags.resolve(opts)
			if err != nil {
				return err
			}
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), reg.Activities)
		},
	}
}

func newRegistryUpdateCmd(opts *rootOptions, flags *registryFlags) *cobra.Command {
	var id, field, value string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Set one field of an activity (status, version, displayName, description, category, timeout, retries)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := flags.resolve(opts)
			if err != nil {
				return err
			}
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Update(id, field, value, time.Now()); err != nil {
				return err
			}
			if err := reg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated activity %s, field %s to %s\n", id, field, value)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "Activity id")
	f.StringVar(&field, "field", "", "Field to update")
	f.StringVar(&value, "value", "", "New value")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screenbridge/internal/autostart"
)

func newAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage the login autostart entry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Start the bridge automatically at login",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := autostart.Enable("serve"); err != nil {
				return fmt.Errorf("enable autostart: %w", err)
			}
			return printAutostart(cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Remove the login autostart entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := autostart.Disable(); err != nil {
				return fmt.Errorf("disable autostart: %w", err)
			}
			return printAutostart(cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether autostart is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAutostart(cmd)
		},
	})
	return cmd
}

func printAutostart(cmd *cobra.Command) error {
	path, err := autostart.Path()
	if err != nil {
		return err
	}
	state := "disabled"
	if autostart.IsEnabled() {
		state = "enabled"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "autostart %s (%s)\n", state, path)
	return err
}

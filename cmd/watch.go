package main

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"screenbridge/internal/config"
	"screenbridge/internal/logging"
	"screenbridge/internal/network"
	"screenbridge/internal/protocol"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the control service status reported by a running bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logs, err := logging.New(logging.Options{Level: cfg.LogLevel, Console: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer logs.Close()

			addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.BridgePort))
			client := network.NewStatusClient(addr, logs.Logger)
			out := cmd.OutOrStdout()
			client.OnStatus = func(p protocol.StatusPayload) {
				printStatus(out, p)
			}
			return client.Run(cmd.Context())
		},
	}
}

func printStatus(w io.Writer, p protocol.StatusPayload) {
	checked := "never"
	if !p.CheckedAt.IsZero() {
		checked = p.CheckedAt.Local().Format("15:04:05")
	}
	fmt.Fprintf(w, "%s  %s\n", checked, p.Label)
}

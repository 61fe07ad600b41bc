package fedmeshd

import (
	"context"

	"github.com/absmach/supermq/pkg/server"
	"github.com/spf13/cobra"
)

var (
	DefTLSVerification = false
	DefFederationURL   = "http://localhost:7070"
	DefCoordinatorURL  = "http://localhost:7071"
)

var nodeCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start node",
		Long:  `Start a federation node with default configuration.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := Config{
				LogLevel:     "info",
				NodeID:       "node-local",
				FederationID: "default",
				MQTTAddress:  "tcp://localhost:1883",
				StateDir:     "./fedmesh-state",
				FederationServer: server.Config{
					Port: "7070",
				},
				CoordinatorServer: server.Config{
					Port: "7071",
				},
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			if err := StartNode(ctx, cancel, cfg); err != nil {
				cmd.PrintErrf("failed to start node: %s", err.Error())
			}
			cancel()
		},
	},
}

func NewNodeCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "node [start]",
		Short: "Node management",
		Long:  `Run a federation node.`,
	}

	for i := range nodeCmd {
		cmd.AddCommand(&nodeCmd[i])
	}

	return &cmd
}

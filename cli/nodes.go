package cli

import (
	"encoding/json"

	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/fedmesh/fedmesh/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10
)

var fsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	fsdk = s
}

func NewNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes [view|list]",
		Short: "Federation nodes",
		Long:  `View and list federation nodes.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View node",
		Long:  `View a node's registration.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			n, err := fsdk.GetNode(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, n)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List nodes",
		Long:  `List registered federation nodes.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := fsdk.ListNodes(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)

	return cmd
}

func NewMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages [send]",
		Short: "Federation messages",
		Long:  `Send messages over the federation.`,
	}

	sendCmd := &cobra.Command{
		Use:   "send <type> <payload> [target]",
		Short: "Send message",
		Long:  `Send a message with a JSON payload, optionally to a specific node.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 || len(args) > 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			var payload json.RawMessage
			if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			msg, err := message.New(message.Type(args[0]), "cli", payload)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if len(args) == 3 {
				msg.TargetNodeID = args[2]
			}

			if err := fsdk.SendMessage(msg); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(sendCmd)

	return cmd
}

func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Health check",
		Long:  `Check the health of the remote instance.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := fsdk.HealthCheck(); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}
}

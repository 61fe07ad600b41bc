package main

import (
	"log"

	"github.com/fedmesh/fedmesh/cli"
	"github.com/fedmesh/fedmesh/fedmeshd"
	"github.com/fedmesh/fedmesh/pkg/sdk"
	"github.com/spf13/cobra"
)

func main() {
	var baseURL string
	var token string

	rootCmd := &cobra.Command{
		Use:   "fedmesh-cli",
		Short: "Fedmesh CLI",
		Long:  `Fedmesh CLI is a command line interface for interacting with federation nodes.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			s := sdk.NewSDK(sdk.Config{
				BaseURL:         baseURL,
				Token:           token,
				TLSVerification: fedmeshd.DefTLSVerification,
			})
			cli.SetSDK(s)
		},
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", fedmeshd.DefCoordinatorURL, "base URL of the target instance")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token for authenticated instances")

	rootCmd.AddCommand(cli.NewNodesCmd())
	rootCmd.AddCommand(cli.NewMessagesCmd())
	rootCmd.AddCommand(cli.NewRoundsCmd())
	rootCmd.AddCommand(cli.NewParticipantsCmd())
	rootCmd.AddCommand(cli.NewHealthCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"log"

	"github.com/fedmesh/fedmesh/fedmeshd"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fedmeshd",
		Short: "Fedmesh Daemon",
		Long:  `Fedmesh Daemon manages the lifecycle of federation nodes.`,
	}

	nodeCmd := fedmeshd.NewNodeCmd()

	rootCmd.AddCommand(nodeCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

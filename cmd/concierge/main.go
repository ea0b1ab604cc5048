package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "concierge",
		Short:         "Maya, the HealthyMind care concierge",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCommand(), newChatCommand(), newHashPasswordCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

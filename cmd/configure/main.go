package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexocrm/crm-ai-gateway/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "crm-ai-configure",
		Short: "Configuration tool for the CRM AI gateway",
		Long:  "CLI tool for managing chatbot profiles, training examples, redaction policy, and service tokens",
	}

	rootCmd.AddCommand(commands.NewChatbotCmd())
	rootCmd.AddCommand(commands.NewQACmd())
	rootCmd.AddCommand(commands.NewPolicyCmd())
	rootCmd.AddCommand(commands.NewTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

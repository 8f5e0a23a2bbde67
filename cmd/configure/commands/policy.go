package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexocrm/crm-ai-gateway/internal/config"
	"github.com/nexocrm/crm-ai-gateway/internal/redact"
)

// NewPolicyCmd creates the redaction policy command.
func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the redaction policy",
	}
	cmd.AddCommand(newPolicyShowCmd())
	return cmd
}

func newPolicyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective sensitive-field set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			fields := redact.DefaultFields()
			source := "built-in defaults"
			policy, err := cfg.LoadPolicy()
			if err != nil {
				return fmt.Errorf("load policy: %w", err)
			}
			if policy != nil {
				fields = policy.SensitiveFields
				source = cfg.PolicyFile
			}

			fmt.Printf("Sensitive fields (%s):\n", source)
			for _, f := range fields {
				fmt.Printf("  - %s\n", f)
			}
			if cfg.PIIHashSalt != "" || (policy != nil && policy.HashSalt != "") {
				fmt.Println("Digest salt: configured")
			} else {
				fmt.Println("Digest salt: not configured (digests are unsalted)")
			}
			return nil
		},
	}
}

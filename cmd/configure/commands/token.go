package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexocrm/crm-ai-gateway/internal/config"
	"github.com/nexocrm/crm-ai-gateway/internal/services/auth"
)

// NewTokenCmd creates the service token command.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage service tokens",
	}
	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed service token",
		Long:  "Signs a Bearer token for a caller (CRM backend, frontend proxy) using the shared JWT secret.",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject = strings.TrimSpace(subject)
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
			if err != nil {
				return fmt.Errorf("create token service: %w", err)
			}
			signed, err := tokens.Issue(subject)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Println(signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, e.g. crm-backend (required)")
	return cmd
}

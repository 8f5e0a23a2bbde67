package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexocrm/crm-ai-gateway/internal/config"
	"github.com/nexocrm/crm-ai-gateway/internal/database"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// NewChatbotCmd creates the chatbot profile command with create and list
// subcommands.
func NewChatbotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatbot",
		Short: "Manage chatbot profiles",
		Long:  "Create or list the standing persona profiles the assembler builds system messages from.",
	}
	cmd.AddCommand(newChatbotCreateCmd())
	cmd.AddCommand(newChatbotListCmd())
	return cmd
}

func openDB() (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func newChatbotCreateCmd() *cobra.Command {
	var (
		chatbotID    int64
		position     int
		personality  string
		tone         string
		purpose      string
		contextText  string
		instructions string
		welcome      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a chatbot profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chatbotID <= 0 {
				return fmt.Errorf("--chatbot-id is required")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			repo := database.NewChatbotProfileRepository(db)
			profile := &models.ChatbotProfile{
				ChatbotID:           chatbotID,
				Position:            position,
				WelcomeMessage:      welcome,
				Personality:         personality,
				CommunicationTone:   tone,
				MainPurpose:         purpose,
				GeneralContext:      contextText,
				SpecialInstructions: instructions,
			}
			if err := repo.Create(context.Background(), profile); err != nil {
				return fmt.Errorf("create profile: %w", err)
			}
			fmt.Printf("Created profile %d for chatbot %d at position %d.\n", profile.ID, chatbotID, position)
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatbotID, "chatbot-id", 0, "Chatbot id (required)")
	cmd.Flags().IntVar(&position, "position", 0, "Assembly position")
	cmd.Flags().StringVar(&personality, "personality", "", "Persona description")
	cmd.Flags().StringVar(&tone, "tone", "", "Communication tone")
	cmd.Flags().StringVar(&purpose, "purpose", "", "Main purpose")
	cmd.Flags().StringVar(&contextText, "context", "", "General context")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Special instructions")
	cmd.Flags().StringVar(&welcome, "welcome", "", "Welcome message")
	return cmd
}

func newChatbotListCmd() *cobra.Command {
	var chatbotID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a chatbot's profiles in assembly order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chatbotID <= 0 {
				return fmt.Errorf("--chatbot-id is required")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			repo := database.NewChatbotProfileRepository(db)
			profiles, err := repo.ListByChatbot(context.Background(), chatbotID)
			if err != nil {
				return fmt.Errorf("list profiles: %w", err)
			}
			if len(profiles) == 0 {
				fmt.Println("No profiles configured. The assembler will use the default persona.")
				return nil
			}
			for _, p := range profiles {
				fmt.Printf("  [%d] position=%d personality=%q tone=%q purpose=%q\n",
					p.ID, p.Position, p.Personality, p.CommunicationTone, p.MainPurpose)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatbotID, "chatbot-id", 0, "Chatbot id (required)")
	return cmd
}

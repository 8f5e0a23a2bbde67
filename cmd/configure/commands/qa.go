package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexocrm/crm-ai-gateway/internal/database"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// NewQACmd creates the training example command with add, list, and
// deactivate subcommands.
func NewQACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qa",
		Short: "Manage chatbot training examples",
		Long:  "Add, list, or deactivate the question/answer examples appended to the system message.",
	}
	cmd.AddCommand(newQAAddCmd())
	cmd.AddCommand(newQAListCmd())
	cmd.AddCommand(newQADeactivateCmd())
	return cmd
}

func newQAAddCmd() *cobra.Command {
	var (
		chatbotID int64
		question  string
		answer    string
		category  string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a training example",
		RunE: func(cmd *cobra.Command, args []string) error {
			question = strings.TrimSpace(question)
			answer = strings.TrimSpace(answer)
			if chatbotID <= 0 {
				return fmt.Errorf("--chatbot-id is required")
			}
			if question == "" || answer == "" {
				return fmt.Errorf("--question and --answer are required")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			repo := database.NewQAPairRepository(db)
			pair := &models.QAPair{
				ChatbotID:   chatbotID,
				Question:    question,
				IdealAnswer: answer,
				Category:    category,
			}
			if err := repo.Create(context.Background(), pair); err != nil {
				return fmt.Errorf("create qa pair: %w", err)
			}
			fmt.Printf("Added training example %d for chatbot %d.\n", pair.ID, chatbotID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatbotID, "chatbot-id", 0, "Chatbot id (required)")
	cmd.Flags().StringVar(&question, "question", "", "Example question (required)")
	cmd.Flags().StringVar(&answer, "answer", "", "Ideal answer (required)")
	cmd.Flags().StringVar(&category, "category", "", "Optional category")
	return cmd
}

func newQAListCmd() *cobra.Command {
	var chatbotID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a chatbot's active training examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chatbotID <= 0 {
				return fmt.Errorf("--chatbot-id is required")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			repo := database.NewQAPairRepository(db)
			pairs, err := repo.ListActiveByChatbot(context.Background(), chatbotID)
			if err != nil {
				return fmt.Errorf("list qa pairs: %w", err)
			}
			if len(pairs) == 0 {
				fmt.Println("No active training examples.")
				return nil
			}
			for _, p := range pairs {
				fmt.Printf("  [%d] Q: %s\n       A: %s\n", p.ID, p.Question, p.IdealAnswer)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatbotID, "chatbot-id", 0, "Chatbot id (required)")
	return cmd
}

func newQADeactivateCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate a training example",
		Long:  "Soft-deletes the example; it stays in the database but leaves the assembly set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id <= 0 {
				return fmt.Errorf("--id is required")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			repo := database.NewQAPairRepository(db)
			if err := repo.Deactivate(context.Background(), id); err != nil {
				return fmt.Errorf("deactivate qa pair: %w", err)
			}
			fmt.Printf("Deactivated training example %d.\n", id)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Training example id (required)")
	return cmd
}

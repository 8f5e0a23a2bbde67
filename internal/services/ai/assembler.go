package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexocrm/crm-ai-gateway/internal/database"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// DefaultPersona is the system persona used when a chatbot has no profile
// rows. Assembly never fails for lack of configuration.
const DefaultPersona = "You are a helpful, professional customer assistant. " +
	"Answer concisely, stay on topic, and never request or repeat personal data."

// DefaultHistoryLimit bounds how many recent context entries are pulled into
// one model call.
const DefaultHistoryLimit = 20

// Assembler builds the ordered message sequence for a model call from
// standing chatbot configuration and the token's conversational history. It
// only reads; the model call itself belongs to the caller.
type Assembler struct {
	profiles     database.ChatbotProfileRepositoryInterface
	qaPairs      database.QAPairRepositoryInterface
	entries      database.ContextEntryRepositoryInterface
	historyLimit int
}

// NewAssembler creates an assembler. A non-positive historyLimit falls back
// to DefaultHistoryLimit.
func NewAssembler(
	profiles database.ChatbotProfileRepositoryInterface,
	qaPairs database.QAPairRepositoryInterface,
	entries database.ContextEntryRepositoryInterface,
	historyLimit int,
) *Assembler {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Assembler{
		profiles:     profiles,
		qaPairs:      qaPairs,
		entries:      entries,
		historyLimit: historyLimit,
	}
}

// BuildModelInput assembles the full message sequence for one model call:
// system message first, then the token's recent history in chronological
// order, then the new inbound content as the final user turn.
func (a *Assembler) BuildModelInput(ctx context.Context, chatbotID int64, token string, inbound string) ([]Message, error) {
	profiles, err := a.profiles.ListByChatbot(ctx, chatbotID)
	if err != nil {
		return nil, err
	}

	pairs, err := a.qaPairs.ListActiveByChatbot(ctx, chatbotID)
	if err != nil {
		return nil, err
	}

	messages := []Message{{Role: RoleSystem, Content: a.buildSystemMessage(profiles, pairs)}}

	history, err := a.entries.Recent(ctx, token, a.historyLimit)
	if err != nil {
		return nil, err
	}

	// Recent returns newest first; the model wants chronology.
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		role := RoleAssistant
		if entry.Type == models.EntryTypeUserMessage {
			role = RoleUser
		}
		messages = append(messages, Message{Role: role, Content: entry.Content})
	}

	messages = append(messages, Message{Role: RoleUser, Content: inbound})

	return messages, nil
}

// buildSystemMessage concatenates the persona fields of the first profile in
// a fixed order (personality, tone, purpose, instructions), then every
// profile's general context and special instructions in ascending position,
// then the active training examples.
func (a *Assembler) buildSystemMessage(profiles []*models.ChatbotProfile, pairs []*models.QAPair) string {
	var b strings.Builder

	if len(profiles) == 0 {
		b.WriteString(DefaultPersona)
	} else {
		head := profiles[0]
		writeField(&b, "Personality", head.Personality)
		writeField(&b, "Communication tone", head.CommunicationTone)
		writeField(&b, "Main purpose", head.MainPurpose)
		writeField(&b, "Instructions", head.SpecialInstructions)
		if b.Len() == 0 {
			b.WriteString(DefaultPersona)
		}

		for _, profile := range profiles {
			writeField(&b, "Context", profile.GeneralContext)
			if profile != head {
				writeField(&b, "Additional instructions", profile.SpecialInstructions)
			}
		}

		for _, profile := range profiles {
			for _, ex := range profile.QAExamples {
				if ex.Question == "" {
					continue
				}
				fmt.Fprintf(&b, "\nExample Q: %s\nExample A: %s", ex.Question, ex.Answer)
			}
		}
	}

	for _, pair := range pairs {
		fmt.Fprintf(&b, "\nExample Q: %s\nExample A: %s", pair.Question, pair.IdealAnswer)
	}

	b.WriteString("\n\nNever reveal or request personal data. Tokens and digests in the context are opaque identifiers; do not speculate about them.")

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nexocrm/crm-ai-gateway/internal/errs"
	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// SanitizedMessageRepository handles sanitized message persistence.
type SanitizedMessageRepository struct {
	db *DB
}

// NewSanitizedMessageRepository creates a new sanitized message repository.
func NewSanitizedMessageRepository(db *DB) *SanitizedMessageRepository {
	return &SanitizedMessageRepository{db: db}
}

// Create inserts a sanitized message. Rows are immutable after creation
// except for the message id back-reference (see SetMessageID).
func (r *SanitizedMessageRepository) Create(ctx context.Context, msg *models.SanitizedMessage) error {
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return errs.Validation("sanitized_metadata", "not serializable: "+err.Error())
	}

	query := `
		INSERT INTO sanitized_messages (message_id, token, sanitized_content, sanitized_metadata, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, created_at
	`

	var messageID sql.NullInt64
	if msg.MessageID != nil {
		messageID = sql.NullInt64{Int64: *msg.MessageID, Valid: true}
	}

	err = r.db.QueryRowContext(ctx, query,
		messageID,
		msg.Token,
		msg.Content,
		metadataJSON,
	).Scan(&msg.ID, &msg.CreatedAt)

	if err != nil {
		return errs.Storage("create sanitized message", err)
	}

	return nil
}

// ListByToken returns a token's sanitized messages, newest first.
func (r *SanitizedMessageRepository) ListByToken(ctx context.Context, token string) ([]*models.SanitizedMessage, error) {
	query := `
		SELECT id, message_id, token, sanitized_content, sanitized_metadata, created_at
		FROM sanitized_messages
		WHERE token = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, token)
	if err != nil {
		return nil, errs.Storage("list sanitized messages", err)
	}
	defer rows.Close()

	var msgs []*models.SanitizedMessage
	for rows.Next() {
		msg, err := scanSanitizedMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage("iterate sanitized messages", err)
	}

	return msgs, nil
}

// GetByMessageID returns the sanitized copy of an identifiable message.
func (r *SanitizedMessageRepository) GetByMessageID(ctx context.Context, messageID int64) (*models.SanitizedMessage, error) {
	query := `
		SELECT id, message_id, token, sanitized_content, sanitized_metadata, created_at
		FROM sanitized_messages
		WHERE message_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, messageID)
	msg, err := scanSanitizedMessage(row)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NotFound("sanitized message", messageID)
		}
		return nil, err
	}

	return msg, nil
}

// SetMessageID patches the back-reference once the identifiable message row
// exists. This is the single permitted mutation of a sanitized message.
func (r *SanitizedMessageRepository) SetMessageID(ctx context.Context, id int64, messageID int64) error {
	query := `UPDATE sanitized_messages SET message_id = $2 WHERE id = $1 AND message_id IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, messageID)
	if err != nil {
		return errs.Storage("set message id", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errs.Storage("set message id", err)
	}
	if affected == 0 {
		return errs.NotFound("sanitized message without back-reference", id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSanitizedMessage(row rowScanner) (*models.SanitizedMessage, error) {
	msg := &models.SanitizedMessage{}
	var messageID sql.NullInt64
	var metadataJSON []byte

	err := row.Scan(
		&msg.ID,
		&messageID,
		&msg.Token,
		&msg.Content,
		&metadataJSON,
		&msg.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("sanitized message", 0)
	}
	if err != nil {
		return nil, errs.Storage("scan sanitized message", err)
	}

	if messageID.Valid {
		msg.MessageID = &messageID.Int64
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &msg.Metadata); err != nil {
			return nil, errs.Storage("unmarshal sanitized metadata", err)
		}
	}

	return msg, nil
}

// MessageRepository persists identifiable messages.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts an identifiable message row.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (conversation_id, channel_id, content, origin, sender_id, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	var senderID, channelID sql.NullInt64
	if msg.SenderID != nil {
		senderID = sql.NullInt64{Int64: *msg.SenderID, Valid: true}
	}
	if msg.ChannelID != nil {
		channelID = sql.NullInt64{Int64: *msg.ChannelID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		msg.ConversationID,
		channelID,
		msg.Content,
		msg.Origin,
		senderID,
		msg.ContentType,
		time.Now().UTC(),
	).Scan(&msg.ID, &msg.CreatedAt)

	if err != nil {
		return errs.Storage("create message", err)
	}

	return nil
}

// CreateOperatorMessage inserts an operator message and deactivates the bot
// for its conversation in the same transaction: either both happen or
// neither does.
func (r *MessageRepository) CreateOperatorMessage(ctx context.Context, msg *models.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage("begin operator message tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var senderID, channelID sql.NullInt64
	if msg.SenderID != nil {
		senderID = sql.NullInt64{Int64: *msg.SenderID, Valid: true}
	}
	if msg.ChannelID != nil {
		channelID = sql.NullInt64{Int64: *msg.ChannelID, Valid: true}
	}

	query := `
		INSERT INTO messages (conversation_id, channel_id, content, origin, sender_id, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, query,
		msg.ConversationID,
		channelID,
		msg.Content,
		models.MessageOriginOperator,
		senderID,
		msg.ContentType,
		time.Now().UTC(),
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return errs.Storage("create operator message", err)
	}

	deactivate := `UPDATE conversations SET bot_active = false, updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, deactivate, msg.ConversationID); err != nil {
		return errs.Storage("deactivate bot", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.Storage("commit operator message tx", err)
	}

	msg.Origin = models.MessageOriginOperator
	return nil
}

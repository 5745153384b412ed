package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Karthik0956A/clauseai-2.0/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound covers both an absent conversation and one owned by a
	// different user; the two are never distinguishable.
	ErrNotFound = errors.New("conversation not found")
	// ErrEmptyMessages rejects a save with no messages.
	ErrEmptyMessages = errors.New("no messages to save")
	// ErrInvalidMessages rejects a save whose sequence carries an unknown role.
	ErrInvalidMessages = errors.New("invalid message sequence")
)

// FallbackTitle is used whenever title derivation fails.
const FallbackTitle = "New Legal Conversation"

// UntitledTitle is used when a new conversation has no user-role message to
// summarize.
const UntitledTitle = "New Chain"

const titlePrompt = `Generate a very short, 3-5 word title for a legal conversation starting with this message: %q. Return ONLY the title, no quotes.`

// Titler derives a short conversation title from its opening message.
type Titler interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// ConversationStore persists conversations with ownership enforcement.
type ConversationStore struct {
	db     *sql.DB
	titler Titler
	log    zerolog.Logger
}

// NewConversationStore builds a conversation store. The titler may be nil,
// in which case new conversations get the fallback title.
func NewConversationStore(db *sql.DB, titler Titler, log zerolog.Logger) *ConversationStore {
	return &ConversationStore{db: db, titler: titler, log: log}
}

// Get returns the conversation only when it exists and belongs to ownerID.
func (s *ConversationStore) Get(ctx context.Context, id, ownerID int64) (*models.Conversation, error) {
	conv, err := s.scanConversation(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT msg_id, role, content, timestamp FROM conversation_messages
		 WHERE conversation_id = ? ORDER BY ord ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg models.Message
			ts  sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Timestamp = ts.String
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

// ListRecent returns the newest conversations for a user ordered by last
// activity, projecting only summary fields.
func (s *ConversationStore) ListRecent(ctx context.Context, ownerID int64, limit int) ([]models.ConversationSummary, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, last_message_at, doc_name, doc_mime_type, doc_uri, doc_context
		 FROM conversations WHERE owner_id = ? ORDER BY last_message_at DESC LIMIT ?`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0, limit)
	for rows.Next() {
		var (
			summary models.ConversationSummary
			doc     docColumns
		)
		if err := rows.Scan(&summary.ID, &summary.Title, &summary.LastMessageAt,
			&doc.name, &doc.mimeType, &doc.uri, &doc.context); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		summary.Document = doc.ref()
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// Save creates a conversation when id is zero and otherwise replaces the
// message sequence of an owned conversation wholesale. The document
// reference is replaced only when a new one is supplied. Concurrent saves
// to the same id are last-writer-wins.
func (s *ConversationStore) Save(ctx context.Context, ownerID, id int64, messages []models.Message, document *models.DocumentRef) (*models.Conversation, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}
	for _, msg := range messages {
		if !msg.Role.Valid() {
			return nil, ErrInvalidMessages
		}
	}

	if id == 0 {
		return s.create(ctx, ownerID, messages, document)
	}
	return s.update(ctx, ownerID, id, messages, document)
}

func (s *ConversationStore) create(ctx context.Context, ownerID int64, messages []models.Message, document *models.DocumentRef) (*models.Conversation, error) {
	title := s.deriveTitle(ctx, messages)
	now := time.Now().UTC()
	doc := docColumnsFrom(document)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (owner_id, title, last_message_at, doc_name, doc_mime_type, doc_uri, doc_context, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ownerID, title, now, doc.name, doc.mimeType, doc.uri, doc.context, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("conversation id: %w", err)
	}
	if err := insertMessages(ctx, tx, id, messages); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	return &models.Conversation{
		ID:            id,
		OwnerID:       ownerID,
		Title:         title,
		Messages:      messages,
		LastMessageAt: now,
		Document:      document,
		CreatedAt:     now,
	}, nil
}

func (s *ConversationStore) update(ctx context.Context, ownerID, id int64, messages []models.Message, document *models.DocumentRef) (*models.Conversation, error) {
	existing, err := s.scanConversation(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if document != nil {
		doc := docColumnsFrom(document)
		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET last_message_at = ?, doc_name = ?, doc_mime_type = ?, doc_uri = ?, doc_context = ? WHERE id = ?`,
			now, doc.name, doc.mimeType, doc.uri, doc.context, id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET last_message_at = ? WHERE id = ?`, now, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_messages WHERE conversation_id = ?`, id,
	); err != nil {
		return nil, fmt.Errorf("clear messages: %w", err)
	}
	if err := insertMessages(ctx, tx, id, messages); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	if document == nil {
		document = existing.Document
	}
	return &models.Conversation{
		ID:            id,
		OwnerID:       ownerID,
		Title:         existing.Title,
		Messages:      messages,
		LastMessageAt: now,
		Document:      document,
		CreatedAt:     existing.CreatedAt,
	}, nil
}

// deriveTitle asks the titler to summarize the first user-role message.
// Title derivation never blocks or fails the save.
func (s *ConversationStore) deriveTitle(ctx context.Context, messages []models.Message) string {
	var first string
	for _, msg := range messages {
		if msg.Role == models.RoleUser {
			first = msg.Content
			break
		}
	}
	if first == "" {
		return UntitledTitle
	}
	if s.titler == nil {
		return FallbackTitle
	}
	title, err := s.titler.Summarize(ctx, fmt.Sprintf(titlePrompt, first))
	if err != nil || title == "" {
		if err != nil {
			s.log.Warn().Err(err).Msg("title derivation failed, using fallback")
		}
		return FallbackTitle
	}
	return title
}

func (s *ConversationStore) scanConversation(ctx context.Context, id, ownerID int64) (*models.Conversation, error) {
	var (
		conv models.Conversation
		doc  docColumns
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, last_message_at, doc_name, doc_mime_type, doc_uri, doc_context, created_at
		 FROM conversations WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&conv.ID, &conv.OwnerID, &conv.Title, &conv.LastMessageAt,
		&doc.name, &doc.mimeType, &doc.uri, &doc.context, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	conv.Document = doc.ref()
	return &conv, nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, conversationID int64, messages []models.Message) error {
	for ord, msg := range messages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_messages (conversation_id, ord, msg_id, role, content, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			conversationID, ord, msg.ID, msg.Role, msg.Content, msg.Timestamp,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return nil
}

// docColumns maps the nullable document columns embedded in the
// conversations table.
type docColumns struct {
	name     sql.NullString
	mimeType sql.NullString
	uri      sql.NullString
	context  sql.NullString
}

func docColumnsFrom(ref *models.DocumentRef) docColumns {
	if ref == nil {
		return docColumns{}
	}
	return docColumns{
		name:     sql.NullString{String: ref.Name, Valid: true},
		mimeType: sql.NullString{String: ref.MimeType, Valid: true},
		uri:      sql.NullString{String: ref.URI, Valid: true},
		context:  sql.NullString{String: ref.Context, Valid: ref.Context != ""},
	}
}

func (d docColumns) ref() *models.DocumentRef {
	if !d.uri.Valid || d.uri.String == "" {
		return nil
	}
	return &models.DocumentRef{
		Name:     d.name.String,
		MimeType: d.mimeType.String,
		URI:      d.uri.String,
		Context:  d.context.String,
	}
}

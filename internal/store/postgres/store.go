package postgres

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"concierge-backend/internal/crypto"
	"concierge-backend/internal/models"
	"concierge-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

// PostgresStore persists conversations in a single table. The state column is
// JSONB; when a Sealer is configured it holds {"data": <base64 AES-GCM blob>}
// instead of the plain state.
type PostgresStore struct {
	db     *pgxpool.Pool
	sealer *crypto.Sealer
}

// NewPostgresStore creates a store on db. sealer may be nil.
func NewPostgresStore(db *pgxpool.Pool, sealer *crypto.Sealer) *PostgresStore {
	return &PostgresStore{db: db, sealer: sealer}
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id         UUID PRIMARY KEY,
    state      JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS conversations_created_at_idx ON conversations (created_at DESC);
`

// Migrate creates the conversations table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "database error applying schema")
	}
	return nil
}

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (id, state)
VALUES ($1, $2)
RETURNING created_at, updated_at;
`

func (s *PostgresStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	state, err := s.encodeState(c.ID, c.State)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx, createConversation, c.ID, state).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			log.Error().Str("code", pgErr.Code).Str("detail", pgErr.Detail).Str("conversation_id", c.ID.String()).
				Msg("postgres error inserting conversation")
		}
		return errors.Wrap(err, "database error creating conversation")
	}
	log.Debug().Str("conversation_id", c.ID.String()).Msg("conversation inserted")
	return nil
}

const getConversation = `-- name: GetConversation :one
SELECT id, state, created_at, updated_at
FROM conversations
WHERE id = $1;
`

func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	row := s.db.QueryRow(ctx, getConversation, id)
	c, err := s.scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrapf(err, "error scanning conversation %s", id)
	}
	return c, nil
}

const saveConversation = `-- name: SaveConversation :one
UPDATE conversations
SET state = $2, updated_at = NOW()
WHERE id = $1
RETURNING created_at, updated_at;
`

func (s *PostgresStore) SaveConversation(ctx context.Context, c *models.Conversation) error {
	state, err := s.encodeState(c.ID, c.State)
	if err != nil {
		return err
	}
	err = s.db.QueryRow(ctx, saveConversation, c.ID, state).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return errors.Wrap(err, "failed to update conversation state")
	}
	return nil
}

const listConversations = `-- name: ListConversations :many
SELECT id, state, created_at, updated_at
FROM conversations
ORDER BY created_at DESC
LIMIT $1 OFFSET $2;
`

func (s *PostgresStore) ListConversations(ctx context.Context, limit, offset int) ([]models.Conversation, error) {
	limit, offset = store.ClampPage(limit, offset)
	rows, err := s.db.Query(ctx, listConversations, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "error querying conversations")
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := s.scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "error scanning conversation row")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating conversation rows")
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) scanConversation(row pgx.Row) (*models.Conversation, error) {
	var (
		c   models.Conversation
		raw []byte
	)
	if err := row.Scan(&c.ID, &raw, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	st, err := s.decodeState(c.ID, raw)
	if err != nil {
		return nil, err
	}
	c.State = st
	return &c, nil
}

// Helper struct for JSONB storage of encrypted data
type encryptedDataJSON struct {
	Data *string `json:"data"` // Base64 encoded sealed bytes
}

func (s *PostgresStore) encodeState(id uuid.UUID, st models.ConversationState) ([]byte, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal conversation state")
	}
	if s.sealer == nil {
		return raw, nil
	}
	sealed, err := s.sealer.Seal(raw, id[:])
	if err != nil {
		return nil, errors.Wrap(err, "failed to seal conversation state")
	}
	data := base64.StdEncoding.EncodeToString(sealed)
	return json.Marshal(encryptedDataJSON{Data: &data})
}

func (s *PostgresStore) decodeState(id uuid.UUID, raw []byte) (models.ConversationState, error) {
	var st models.ConversationState

	var envelope encryptedDataJSON
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return st, errors.Wrap(err, "failed to parse conversation state")
	}
	if envelope.Data != nil {
		if s.sealer == nil {
			return st, errors.Errorf("conversation %s is encrypted but no encryption key is configured", id)
		}
		sealed, err := base64.StdEncoding.DecodeString(*envelope.Data)
		if err != nil {
			return st, errors.Wrap(err, "failed to decode sealed conversation state")
		}
		if raw, err = s.sealer.Open(sealed, id[:]); err != nil {
			return st, errors.Wrapf(err, "failed to open conversation %s", id)
		}
	}

	if err := json.Unmarshal(raw, &st); err != nil {
		return st, errors.Wrap(err, "failed to parse conversation state")
	}
	return st, nil
}

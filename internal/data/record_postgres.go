package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/repo"
)

// postgresRecordRepo implements the message record repository on Postgres
type postgresRecordRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRecordRepo connects to Postgres and ensures the schema exists
func NewPostgresRecordRepo(ctx context.Context, dsn string) (repo.RecordRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS message_records (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			provider_message_id TEXT UNIQUE,
			body TEXT NOT NULL DEFAULT '',
			direction TEXT NOT NULL,
			attributed_member_id TEXT,
			attributed_display_name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_message_records_conversation ON message_records(conversation_id, created_at DESC)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create conversation index: %w", err)
	}

	return &postgresRecordRepo{pool: pool}, nil
}

const postgresRecordColumns = `id, conversation_id, provider_message_id, body, direction, attributed_member_id, attributed_display_name, created_at`

// FindByProviderID gets a record by provider message ID
func (r *postgresRecordRepo) FindByProviderID(ctx context.Context, providerMessageID string) (*domain.MessageRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+postgresRecordColumns+` FROM message_records WHERE provider_message_id = $1`,
		providerMessageID)

	record, err := scanPostgresRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return record, nil
}

// FindRecentByContent lists matching records, newest first
func (r *postgresRecordRepo) FindRecentByContent(ctx context.Context, conversationID, body string, direction domain.Direction, since time.Time) ([]domain.MessageRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+postgresRecordColumns+`
		FROM message_records
		WHERE conversation_id = $1 AND body = $2 AND direction = $3 AND created_at >= $4
		ORDER BY created_at DESC
		LIMIT $5
	`, conversationID, body, string(direction), since, maxContentCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent records: %w", err)
	}
	defer rows.Close()

	var records []domain.MessageRecord
	for rows.Next() {
		record, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// AttributeIfUnset writes the identity only when none is set
func (r *postgresRecordRepo) AttributeIfUnset(ctx context.Context, recordID string, identity domain.Identity) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE message_records
		SET attributed_member_id = $1, attributed_display_name = $2
		WHERE id = $3 AND attributed_member_id IS NULL
	`, identity.MemberID, identity.DisplayName, recordID)
	if err != nil {
		return false, fmt.Errorf("failed to attribute record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertFromWebhook inserts a record; duplicates are ignored
func (r *postgresRecordRepo) InsertFromWebhook(ctx context.Context, record *domain.MessageRecord) (bool, error) {
	var providerID *string
	if record.ProviderMessageID != "" {
		providerID = &record.ProviderMessageID
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO message_records (id, conversation_id, provider_message_id, body, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, record.ID, record.ConversationID, providerID, record.Body, string(record.Direction), record.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Close closes the pool
func (r *postgresRecordRepo) Close() error {
	r.pool.Close()
	return nil
}

func scanPostgresRecord(row pgx.Row) (*domain.MessageRecord, error) {
	var record domain.MessageRecord
	var providerID, memberID, displayName *string
	var direction string
	if err := row.Scan(&record.ID, &record.ConversationID, &providerID, &record.Body, &direction, &memberID, &displayName, &record.CreatedAt); err != nil {
		return nil, err
	}

	if providerID != nil {
		record.ProviderMessageID = *providerID
	}
	record.Direction = domain.Direction(direction)
	if memberID != nil {
		identity := domain.Identity{MemberID: *memberID}
		if displayName != nil {
			identity.DisplayName = *displayName
		}
		record.Attribution = &identity
	}
	return &record, nil
}

// Compile-time interface checks.
var _ repo.RecordRepo = (*postgresRecordRepo)(nil)
var _ repo.RecordRepo = (*sqliteRecordRepo)(nil)

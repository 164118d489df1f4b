package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqliteRecordRepo implements the message record repository on SQLite
type sqliteRecordRepo struct {
	db *sql.DB
}

// NewSQLiteRecordRepo creates a new SQLite-backed record repository
func NewSQLiteRecordRepo(dbPath string) (repo.RecordRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	// Concurrent dispatches write from several connections
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS message_records (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			provider_message_id TEXT,
			body TEXT NOT NULL DEFAULT '',
			direction TEXT NOT NULL,
			attributed_member_id TEXT,
			attributed_display_name TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_message_records_provider_id
		ON message_records(provider_message_id) WHERE provider_message_id IS NOT NULL
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_message_records_conversation ON message_records(conversation_id, created_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create conversation index: %w", err)
	}

	return &sqliteRecordRepo{db: db}, nil
}

const sqliteRecordColumns = `id, conversation_id, provider_message_id, body, direction, attributed_member_id, attributed_display_name, created_at`

// FindByProviderID gets a record by provider message ID
func (r *sqliteRecordRepo) FindByProviderID(ctx context.Context, providerMessageID string) (*domain.MessageRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sqliteRecordColumns+`
		FROM message_records
		WHERE provider_message_id = ?
	`, providerMessageID)

	record, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return record, nil
}

// FindRecentByContent lists matching records, newest first
func (r *sqliteRecordRepo) FindRecentByContent(ctx context.Context, conversationID, body string, direction domain.Direction, since time.Time) ([]domain.MessageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sqliteRecordColumns+`
		FROM message_records
		WHERE conversation_id = ? AND body = ? AND direction = ? AND created_at >= ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, conversationID, body, string(direction), since.UnixMilli(), maxContentCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent records: %w", err)
	}
	defer rows.Close()

	var records []domain.MessageRecord
	for rows.Next() {
		record, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// AttributeIfUnset writes the identity only when none is set
func (r *sqliteRecordRepo) AttributeIfUnset(ctx context.Context, recordID string, identity domain.Identity) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE message_records
		SET attributed_member_id = ?, attributed_display_name = ?
		WHERE id = ? AND attributed_member_id IS NULL
	`, identity.MemberID, identity.DisplayName, recordID)
	if err != nil {
		return false, fmt.Errorf("failed to attribute record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to attribute record: %w", err)
	}
	return n == 1, nil
}

// InsertFromWebhook inserts a record; duplicates are ignored
func (r *sqliteRecordRepo) InsertFromWebhook(ctx context.Context, record *domain.MessageRecord) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO message_records (id, conversation_id, provider_message_id, body, direction, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.ConversationID,
		nullString(record.ProviderMessageID),
		record.Body,
		string(record.Direction),
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert record: %w", err)
	}
	return n == 1, nil
}

// Close closes the database connection
func (r *sqliteRecordRepo) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*domain.MessageRecord, error) {
	var record domain.MessageRecord
	var providerID, memberID, displayName sql.NullString
	var direction string
	var createdAt int64
	if err := row.Scan(&record.ID, &record.ConversationID, &providerID, &record.Body, &direction, &memberID, &displayName, &createdAt); err != nil {
		return nil, err
	}

	record.ProviderMessageID = providerID.String
	record.Direction = domain.Direction(direction)
	record.CreatedAt = time.UnixMilli(createdAt)
	if memberID.Valid {
		record.Attribution = &domain.Identity{MemberID: memberID.String, DisplayName: displayName.String}
	}
	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package chatpod

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var _ Store = &SQLiteStore{}

// SQLiteStore implements the Store interface using SQLite. Each message is a
// row; rowid ordering matches insertion order, so a loaded log comes back in
// the order it was appended.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance with the provided database
// file path. It initializes the schema if it doesn't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initDB() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);`

	_, err := s.db.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendMessage records one message for the session.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID, customerID string, msg Message) error {
	query := `
	INSERT INTO messages (id, session_id, customer_id, role, content, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, msg.ID, sessionID, customerID, string(msg.Role), msg.Content, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	return nil
}

// LoadLog retrieves the session's messages in insertion order.
func (s *SQLiteStore) LoadLog(ctx context.Context, sessionID string, limit, offset int) (*MessageList, error) {
	query := `
	SELECT id, role, content
	FROM messages
	WHERE session_id = ?
	ORDER BY rowid
	LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := NewMessageList()

	for rows.Next() {
		var id, role, content string
		if err := rows.Scan(&id, &role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		messages.Add(Message{ID: id, Role: Role(role), Content: content})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return messages, nil
}

// GetUserInfo provides a dummy implementation that returns an empty UserInfo.
// The messages table carries no user profile data.
func (s *SQLiteStore) GetUserInfo(ctx context.Context, customerID string) (UserInfo, error) {
	return UserInfo{
		Name:       "",
		CustomMeta: make(map[string]string),
	}, nil
}

package chatpod

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var _ Store = &PostgresStore{}

type messageRow struct {
	ID         uint   `gorm:"primaryKey"`
	MessageID  string `gorm:"uniqueIndex;size:36"`
	SessionID  string `gorm:"index"`
	CustomerID string
	Role       string
	Content    string
}

func (messageRow) TableName() string { return "messages" }

type customerRow struct {
	CustomerID string `gorm:"primaryKey"`
	Name       string
}

func (customerRow) TableName() string { return "customers" }

// PostgresStore implements the Store interface on Postgres via gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to Postgres with the given URI and migrates the
// schema.
func NewPostgresStore(uri string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&messageRow{}, &customerRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// AppendMessage records one message for the session.
func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID, customerID string, msg Message) error {
	row := messageRow{
		MessageID:  msg.ID,
		SessionID:  sessionID,
		CustomerID: customerID,
		Role:       string(msg.Role),
		Content:    msg.Content,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// LoadLog retrieves the session's messages in insertion order.
func (s *PostgresStore) LoadLog(ctx context.Context, sessionID string, limit, offset int) (*MessageList, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	messages := NewMessageList()
	for _, row := range rows {
		messages.Add(Message{ID: row.MessageID, Role: Role(row.Role), Content: row.Content})
	}
	return messages, nil
}

// GetUserInfo looks up the customer's profile. Unknown customers get an empty
// UserInfo rather than an error.
func (s *PostgresStore) GetUserInfo(ctx context.Context, customerID string) (UserInfo, error) {
	var row customerRow
	err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).Limit(1).Find(&row).Error
	if err != nil {
		return UserInfo{}, fmt.Errorf("failed to query customer: %w", err)
	}
	return UserInfo{
		Name:       row.Name,
		CustomMeta: make(map[string]string),
	}, nil
}

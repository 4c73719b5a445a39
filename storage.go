package chatpod

import "context"

// UserInfo carries whatever the storage layer knows about a customer. It is
// handed to the prompt template as extra context.
type UserInfo struct {
	Name       string
	CustomMeta map[string]string
}

// Store persists conversation logs across process restarts. The in-memory
// SessionStore remains the source of truth during a turn; a Store only
// records what happened.
type Store interface {
	AppendMessage(ctx context.Context, sessionID, customerID string, msg Message) error
	LoadLog(ctx context.Context, sessionID string, limit, offset int) (*MessageList, error)

	GetUserInfo(ctx context.Context, customerID string) (UserInfo, error)
}

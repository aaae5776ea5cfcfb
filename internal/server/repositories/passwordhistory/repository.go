package passwordhistory

import "context"

// Repository persists the bounded sequence of prior password hashes per user.
type Repository interface {
	Add(ctx context.Context, userID, hash string) error
	ListRecent(ctx context.Context, userID string, n int) ([]string, error)
	Prune(ctx context.Context, userID string, keep int) error
}

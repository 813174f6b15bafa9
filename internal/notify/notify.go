package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotificationNotFound = errors.New("notification not found")

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Message   string
	Kind      string
	IsRead    bool
	CreatedAt time.Time
}

// Service writes notifications to the notifications table. Notify is fire
// and forget: failures are logged and swallowed so a broken notification
// path can never fail or roll back an appointment operation.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) Notify(ctx context.Context, userID uuid.UUID, message, kind string) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, message, kind, is_read, created_at)
		VALUES ($1, $2, $3, $4, false, now())
	`, uuid.New(), userID, message, kind)
	if err != nil {
		log.Printf("notify user %s (%s): %v", userID, kind, err)
	}
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, message, kind, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Kind, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM notifications
		WHERE user_id = $1 AND NOT is_read
	`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead flips the read flag for a notification owned by userID.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = true
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"russet/internal/domain/entity"
)

type userRepo struct{ db *sql.DB }

func scanUser(row interface{ Scan(...any) error }) (entity.User, error) {
	var u entity.User
	var createdAt int64
	var userType int
	if err := row.Scan(&u.ID, &u.Name, &u.PasswordHash, &userType, &createdAt); err != nil {
		return entity.User{}, err
	}
	u.Type = entity.UserType(userType)
	u.CreatedAt = time.UnixMilli(createdAt)
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (entity.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, password_hash, type, created_at FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.User{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("GetByID: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByName(ctx context.Context, name string) (entity.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, password_hash, type, created_at FROM users WHERE name = ?`, name)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.User{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("GetByName: %w", err)
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, user entity.User) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, name, password_hash, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.PasswordHash, int(user.Type), user.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("UpdatePasswordHash: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *userRepo) CountByType(ctx context.Context, t entity.UserType) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE type = ?`, int(t)).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountByType: %w", err)
	}
	return n, nil
}

type sessionRepo struct{ db *sql.DB }

func (r *sessionRepo) Create(ctx context.Context, session entity.Session) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.Token, session.UserID, session.CreatedAt.UnixMilli(), session.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, token string) (entity.Session, error) {
	var s entity.Session
	var createdAt, expiresAt int64
	err := r.db.QueryRowContext(ctx, `SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Session{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Session{}, fmt.Errorf("Get: %w", err)
	}
	s.CreatedAt = time.UnixMilli(createdAt)
	s.ExpiresAt = time.UnixMilli(expiresAt)
	return s, nil
}

func (r *sessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("DeleteForUser: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type subRepo struct{ db *sql.DB }

func (r *subRepo) Create(ctx context.Context, sub entity.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, feed_id) VALUES (?, ?)
ON CONFLICT (user_id, feed_id) DO NOTHING`, sub.UserID, sub.FeedID)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *subRepo) Delete(ctx context.Context, userID, feedID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = ? AND feed_id = ?`, userID, feedID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (r *subRepo) ListFeedIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT feed_id FROM subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListFeedIDsForUser: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListFeedIDsForUser: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *subRepo) ListUserIDsForFeed(ctx context.Context, feedID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM subscriptions WHERE feed_id = ?`, feedID)
	if err != nil {
		return nil, fmt.Errorf("ListUserIDsForFeed: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListUserIDsForFeed: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *subRepo) Exists(ctx context.Context, userID, feedID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE user_id = ? AND feed_id = ?)`, userID, feedID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return exists, nil
}

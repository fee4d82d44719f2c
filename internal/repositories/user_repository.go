package repositories

import (
	"context"
	"fmt"
	"strings"

	"busbooking/internal/domain/models"
)

func (s *MySQLStore) CreateUser(ctx context.Context, u *models.User) error {
	res, err := s.db().ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.Name, strings.ToLower(u.Email), u.PasswordHash, u.Role, u.CreatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert user: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return nil
}

func (s *MySQLStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db().QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = ? LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return models.User{}, classify(fmt.Errorf("get user %q: %w", email, err))
	}
	return u, nil
}

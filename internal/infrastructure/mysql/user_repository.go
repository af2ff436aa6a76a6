package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"auction-platform/internal/domain"
)

const userSelect = `
        SELECT u.id, u.username, u.email, COALESCE(u.full_name, ''), u.created_at, u.last_login,
               COALESCE(GROUP_CONCAT(r.role_name ORDER BY r.role_name SEPARATOR ','), '')
        FROM users u
        LEFT JOIN user_roles r ON r.user_id = u.id`

type MySQLUserRepository struct {
	db querier
}

func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

func (r *MySQLUserRepository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	query := userSelect + `
        WHERE u.id = ?
        GROUP BY u.id`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return user, nil
}

func (r *MySQLUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := userSelect + `
        WHERE u.username = ?
        GROUP BY u.id`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: username %q", domain.ErrUserNotFound, username)
		}
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		lastLogin sql.NullTime
		roles     string
	)

	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.CreatedAt, &lastLogin, &roles)
	if err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	if roles != "" {
		user.Roles = strings.Split(roles, ",")
	}
	return &user, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uteop23/askara-ai-app/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, name, credits, is_premium, premium_expires, email_notifications, created_at
		FROM users WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.Credits, &user.IsPremium,
		&user.PremiumExpires, &user.EmailNotifications, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) AddCredits(ctx context.Context, userID uuid.UUID, amount int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE users SET credits = credits + $1 WHERE id = $2", amount, userID)
	return err
}

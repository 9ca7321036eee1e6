package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ticket-marketplace/internal/domain"
	"ticket-marketplace/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) CreateUser(ctx context.Context, user models.User) error {
	_, err := d.Bun.NewInsert().Model(&user).Exec(ctx)
	return err
}

// UpdateProfile refreshes the identity-provider fields only. Role and
// moderation flags never change on login.
func (d *DB) UpdateProfile(ctx context.Context, user models.User) error {
	_, err := d.Bun.NewUpdate().
		Model(&user).
		Column("name", "email", "photo_url").
		Where("id = ?", user.ID).
		Exec(ctx)
	return err
}

// SetRole moves a user between roles with the current role as a guard.
func (d *DB) SetRole(ctx context.Context, id string, from, to models.Role, clearFraud bool) (bool, error) {
	q := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("role = ?", to).
		Where("id = ?", id).
		Where("role = ?", from)
	if clearFraud {
		q = q.Set("is_fraud = ?", false)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkFraud flags a vendor and deactivates the account in one write.
func (d *DB) MarkFraud(ctx context.Context, id string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("is_fraud = ?", true).
		Set("is_active = ?", false).
		Where("id = ?", id).
		Where("role = ?", models.RoleVendor).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (d *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := d.Bun.NewSelect().
		Model(&users).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return users, nil
}

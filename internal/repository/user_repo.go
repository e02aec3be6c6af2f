package repository

import (
	"bakery/internal/model"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("email_taken")

type UserRepository interface {
	// CreateUser inserts the user and, when given, the ledger entry that
	// accounts for the opening balance.
	CreateUser(ctx context.Context, u *model.User, opening *model.CreditTransaction) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	UpdatePlan(ctx context.Context, userID, plan string) error
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, name, email, password_hash, image, credits, plan, stripe_customer_id, created_at, updated_at`

func (r *userRepo) CreateUser(ctx context.Context, u *model.User, opening *model.CreditTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer rollback(tx)

	const q = `INSERT INTO users (id, name, email, password_hash, image, credits, plan)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, q, u.ID, u.Name, u.Email, u.PasswordHash, u.Image, u.Credits, u.Plan).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user %s: %w", u.Email, err)
	}

	if opening != nil {
		if err := insertTransaction(ctx, tx, opening); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user %s: %w", u.Email, err)
	}
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID)
}

func (r *userRepo) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	row := r.db.QueryRowContext(ctx, query, arg)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Image, &u.Credits, &u.Plan,
		&u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const q = `UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, userID, customerID)
	if err != nil {
		return fmt.Errorf("set stripe customer for user %s: %w", userID, err)
	}
	return expectRow(res, userID)
}

func (r *userRepo) UpdatePlan(ctx context.Context, userID, plan string) error {
	const q = `UPDATE users SET plan = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, userID, plan)
	if err != nil {
		return fmt.Errorf("update plan for user %s: %w", userID, err)
	}
	return expectRow(res, userID)
}

func expectRow(res sql.Result, userID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for user %s: %w", userID, err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

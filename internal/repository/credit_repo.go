package repository

import (
	"bakery/internal/model"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInsufficientCredits is returned when a debit exceeds the locked balance.
var ErrInsufficientCredits = errors.New("insufficient_credits")

// UsageDebit describes one metered generation to charge.
type UsageDebit struct {
	TransactionID string
	UserID        string
	Amount        model.Credits
	Description   string
	Metadata      json.RawMessage
	// Media is recorded in the same transaction and referenced by the ledger entry.
	Media *model.Media
}

// CreditGrant adds credits to a user. A non-empty ReferenceID makes the grant
// idempotent per (Type, ReferenceID).
type CreditGrant struct {
	TransactionID string
	UserID        string
	Amount        model.Credits
	Type          string
	Description   string
	Metadata      json.RawMessage
	ReferenceID   string
}

// CreditRepository owns every write to user balances and the ledger.
type CreditRepository interface {
	// Debit locks the balance, refuses the debit with ErrInsufficientCredits
	// when it is too low, and otherwise writes the usage entry. It returns the
	// balance after the debit, or the balance found when refused.
	Debit(ctx context.Context, d UsageDebit) (model.Credits, error)
	// Grant applies a credit grant once. It reports false when the reference
	// was already granted.
	Grant(ctx context.Context, g CreditGrant) (bool, error)
	// TopUp raises a user on the given plan to target credits. It grants
	// nothing when the balance is already at or above target or when the
	// reference was already used.
	TopUp(ctx context.Context, g CreditGrant, plan string, target model.Credits) (model.Credits, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.CreditTransaction, error)
	// ListTopUpCandidates returns, ordered by id and after afterID, users on
	// the plan below target that have no transaction with the reference built
	// from refPrefix, their id and refSuffix.
	ListTopUpCandidates(ctx context.Context, plan string, target model.Credits, refPrefix, refSuffix, afterID string, limit int) ([]string, error)
}

type creditRepo struct {
	db *sql.DB
}

// NewCreditRepo creates a new CreditRepository.
func NewCreditRepo(db *sql.DB) CreditRepository {
	return &creditRepo{db: db}
}

func (r *creditRepo) Debit(ctx context.Context, d UsageDebit) (model.Credits, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction for debit: %w", err)
	}
	defer rollback(tx)

	var balance model.Credits
	const lockQ = `SELECT credits FROM users WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lockQ, d.UserID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("locking balance for user %s: %w", d.UserID, err)
	}
	if balance < d.Amount {
		return balance, ErrInsufficientCredits
	}

	const debitQ = `UPDATE users SET credits = credits - $2, updated_at = NOW() WHERE id = $1 RETURNING credits`
	var remaining model.Credits
	if err := tx.QueryRowContext(ctx, debitQ, d.UserID, d.Amount).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("debiting user %s: %w", d.UserID, err)
	}

	entry := &model.CreditTransaction{
		ID:          d.TransactionID,
		UserID:      d.UserID,
		Amount:      -d.Amount,
		Type:        model.TransactionTypeUsage,
		Description: d.Description,
		Metadata:    d.Metadata,
	}
	if d.Media != nil {
		if err := insertMedia(ctx, tx, d.Media); err != nil {
			return 0, err
		}
		entry.ReferenceID = &d.Media.ID
	}
	if err := insertTransaction(ctx, tx, entry); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing debit for user %s: %w", d.UserID, err)
	}
	return remaining, nil
}

func (r *creditRepo) Grant(ctx context.Context, g CreditGrant) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting transaction for grant: %w", err)
	}
	defer rollback(tx)

	applied, err := grant(ctx, tx, g)
	if err != nil || !applied {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing grant for user %s: %w", g.UserID, err)
	}
	return true, nil
}

func (r *creditRepo) TopUp(ctx context.Context, g CreditGrant, plan string, target model.Credits) (model.Credits, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction for top-up: %w", err)
	}
	defer rollback(tx)

	var balance model.Credits
	var userPlan string
	const lockQ = `SELECT credits, plan FROM users WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lockQ, g.UserID).Scan(&balance, &userPlan); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("locking balance for user %s: %w", g.UserID, err)
	}
	if userPlan != plan || balance >= target {
		return 0, nil
	}

	g.Amount = target - balance
	applied, err := grant(ctx, tx, g)
	if err != nil || !applied {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing top-up for user %s: %w", g.UserID, err)
	}
	return g.Amount, nil
}

func grant(ctx context.Context, tx *sql.Tx, g CreditGrant) (bool, error) {
	var ref *string
	if g.ReferenceID != "" {
		ref = &g.ReferenceID
	}

	const insertQ = `
		INSERT INTO credit_transactions (id, user_id, amount, type, description, metadata, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (type, reference_id) DO NOTHING
		RETURNING id`
	var id string
	err := tx.QueryRowContext(ctx, insertQ, g.TransactionID, g.UserID, g.Amount, g.Type, g.Description, jsonArg(g.Metadata), ref).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if isForeignKeyViolation(err) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("recording %s grant for user %s: %w", g.Type, g.UserID, err)
	}

	const creditQ = `UPDATE users SET credits = credits + $2, updated_at = NOW() WHERE id = $1`
	res, err := tx.ExecContext(ctx, creditQ, g.UserID, g.Amount)
	if err != nil {
		return false, fmt.Errorf("crediting user %s: %w", g.UserID, err)
	}
	if err := expectRow(res, g.UserID); err != nil {
		return false, err
	}
	return true, nil
}

func insertTransaction(ctx context.Context, db execer, t *model.CreditTransaction) error {
	const q = `
		INSERT INTO credit_transactions (id, user_id, amount, type, description, metadata, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`
	err := db.QueryRowContext(ctx, q, t.ID, t.UserID, t.Amount, t.Type, t.Description, jsonArg(t.Metadata), t.ReferenceID).
		Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording %s transaction for user %s: %w", t.Type, t.UserID, err)
	}
	return nil
}

func (r *creditRepo) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.CreditTransaction, error) {
	const q = `
		SELECT id, user_id, amount, type, description, metadata, reference_id, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	txs := []model.CreditTransaction{}
	for rows.Next() {
		var t model.CreditTransaction
		var metadata []byte
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &metadata, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction for user %s: %w", userID, err)
		}
		if len(metadata) > 0 {
			t.Metadata = json.RawMessage(metadata)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions for user %s: %w", userID, err)
	}
	return txs, nil
}

func (r *creditRepo) ListTopUpCandidates(ctx context.Context, plan string, target model.Credits, refPrefix, refSuffix, afterID string, limit int) ([]string, error) {
	const q = `
		SELECT u.id
		FROM users u
		WHERE u.plan = $1
		  AND u.credits < $2
		  AND u.id::text > $5
		  AND NOT EXISTS (
		      SELECT 1 FROM credit_transactions t
		      WHERE t.type = 'subscription_renewal'
		        AND t.reference_id = $3 || u.id::text || $4
		  )
		ORDER BY u.id::text
		LIMIT $6`
	rows, err := r.db.QueryContext(ctx, q, plan, target, refPrefix, refSuffix, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top-up candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning top-up candidate: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package storage

import (
	"context"

	"emperror.dev/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

// CreditLedger is the built-in ledger. It shares the store's transaction so
// a debit commits or rolls back with the duel's credit flag.
type CreditLedger struct {
	store *Store
}

func (s *Store) Credits() *CreditLedger { return &CreditLedger{store: s} }

func (l *CreditLedger) account(ctx context.Context, userID string) (*duel.CreditAccount, error) {
	var a duel.CreditAccount
	err := l.store.conn(ctx).Where("user_id = ?", userID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIf(err, "load credit account")
	}
	return &a, nil
}

func (l *CreditLedger) HasBalance(ctx context.Context, userID string) (bool, error) {
	a, err := l.account(ctx, userID)
	if err != nil || a == nil {
		return false, err
	}
	return a.Unlimited || a.Balance > 0, nil
}

func (l *CreditLedger) IsUnlimited(ctx context.Context, userID string) (bool, error) {
	a, err := l.account(ctx, userID)
	if err != nil || a == nil {
		return false, err
	}
	return a.Unlimited, nil
}

// Debit takes one credit. It reports false on insufficient funds.
func (l *CreditLedger) Debit(ctx context.Context, userID string) (bool, error) {
	res := l.store.conn(ctx).Model(&duel.CreditAccount{}).
		Where("user_id = ? AND balance > 0", userID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - 1"),
			"debited": gorm.Expr("debited + 1"),
		})
	if res.Error != nil {
		return false, errors.WrapIf(res.Error, "debit credit")
	}
	return res.RowsAffected == 1, nil
}

// Grant adds amount credits and sets the unlimited flag, creating the
// account on first use.
func (l *CreditLedger) Grant(ctx context.Context, userID string, amount int, unlimited bool) (*duel.CreditAccount, error) {
	if amount < 0 {
		return nil, duel.InvalidArgument("credit amount must not be negative")
	}
	a := duel.CreditAccount{UserID: userID, Balance: amount, Unlimited: unlimited}
	err := l.store.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":   gorm.Expr("credit_accounts.balance + ?", amount),
			"unlimited": unlimited,
		}),
	}).Create(&a).Error
	if err != nil {
		return nil, errors.WrapIf(err, "grant credits")
	}
	return l.account(ctx, userID)
}

func (l *CreditLedger) Account(ctx context.Context, userID string) (*duel.CreditAccount, error) {
	a, err := l.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, duel.NotFound("credit account %s not found", userID)
	}
	return a, nil
}

package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/repositories"
)

// AsUser runs fn inside a transaction scoped to userID so row-level security
// applies to every repository call made with the ctx fn receives. Commit and
// rollback are handled by the transaction manager.
func AsUser(ctx context.Context, txMgr repositories.TransactionManager, userID uuid.UUID, fn func(ctx context.Context) error) error {
	return txMgr.InUserTransaction(ctx, userID, func(txCtx context.Context, _ repositories.Transaction) error {
		return fn(txCtx)
	})
}

// AsUserResult is AsUser for functions that produce a value.
// The zero value is returned whenever the transaction fails.
func AsUserResult[T any](ctx context.Context, txMgr repositories.TransactionManager, userID uuid.UUID, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := txMgr.InUserTransaction(ctx, userID, func(txCtx context.Context, _ repositories.Transaction) error {
		var err error
		result, err = fn(txCtx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// AsService runs fn in a transaction without a user scope. Used for work the
// service role does on a user's behalf, such as provisioning.
func AsService(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) error) error {
	return txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		return fn(txCtx)
	})
}

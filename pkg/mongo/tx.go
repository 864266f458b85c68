package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// WithTransaction runs fn inside a multi-document transaction and returns
// its result. On any error the whole transaction is aborted, so callers
// never observe partial writes. The driver retries transient transaction
// errors internally.
//
// This is the synchronization primitive for cross-document invariants such
// as "at most one active subscription per owner": concurrent writers
// conflict at commit time instead of corrupting state.
func WithTransaction[T any](ctx context.Context, client *mongo.Client, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	session, err := client.StartSession()
	if err != nil {
		return zero, errors.Join(ErrTransactionFailed, err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}

	value, ok := result.(T)
	if !ok {
		return zero, ErrTransactionFailed
	}
	return value, nil
}

// ClientTransactor adapts a mongo client to the Transactor interfaces the
// billing services declare.
type ClientTransactor struct {
	client *mongo.Client
}

// NewTransactor creates a ClientTransactor.
func NewTransactor(client *mongo.Client) *ClientTransactor {
	return &ClientTransactor{client: client}
}

// InTransaction runs fn inside a transaction, discarding the result value.
// When ctx already carries a session, fn joins the surrounding transaction
// instead of opening a nested one, so services can compose their
// transactional methods.
func (t *ClientTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	_, err := WithTransaction(ctx, t.client, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

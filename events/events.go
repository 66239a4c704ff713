// Package events carries "balance changed" notifications from the settlement engine to
// connected clients, locally through a websocket hub or across nodes through redis.
package events

import (
	"context"
	"time"
)

// BalanceChanged is published once per committed ledger row.
type BalanceChanged struct {
	ID            string    `json:"id"`
	UserID        uint      `json:"user_id"`
	TransactionID uint      `json:"transaction_id"`
	Delta         int64     `json:"delta"`
	Balance       int64     `json:"balance"`
	Reason        string    `json:"reason"`
	At            time.Time `json:"at"`
}

// Publisher delivers events. Implementations must not block the caller for long and must
// never fail a settlement; errors are for logging only.
type Publisher interface {
	Publish(ctx context.Context, ev BalanceChanged) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev BalanceChanged) error

func (f PublisherFunc) Publish(ctx context.Context, ev BalanceChanged) error { return f(ctx, ev) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, BalanceChanged) error { return nil })

// Package events announces committed ledger entries to other services.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rongwang/banking-server/internal/models"
)

// Kind names the operation that produced a ledger entry
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
	KindTransfer Kind = "transfer"
)

// TransactionPosted is published once a ledger entry has been committed
type TransactionPosted struct {
	TransactionID int64     `json:"transactionId"`
	Reference     string    `json:"reference"`
	Kind          Kind      `json:"kind"`
	ActorID       *int64    `json:"actorId,omitempty"`
	FromID        *int64    `json:"fromId,omitempty"`
	ToID          *int64    `json:"toId,omitempty"`
	Amount        int64     `json:"amount"`
	Reason        string    `json:"reason,omitempty"`
	Date          time.Time `json:"date"`
}

// NewTransactionPosted builds the event for a committed entry
func NewTransactionPosted(kind Kind, t *models.Transaction) TransactionPosted {
	return TransactionPosted{
		TransactionID: t.ID,
		Reference:     t.Reference,
		Kind:          kind,
		ActorID:       t.ActorID,
		FromID:        t.FromID,
		ToID:          t.ToID,
		Amount:        t.Amount,
		Reason:        t.Reason,
		Date:          t.Date,
	}
}

// Publisher delivers events. Publishing happens after commit, so a failure
// never undoes the entry.
type Publisher interface {
	Publish(ctx context.Context, event TransactionPosted) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransactionPosted) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []TransactionPosted
}

func (r *Recorder) Publish(_ context.Context, event TransactionPosted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far
func (r *Recorder) Events() []TransactionPosted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransactionPosted(nil), r.events...)
}

package models

import (
	"time"
)

// AccountType classifies an account at creation time
type AccountType string

const (
	AccountPersonal AccountType = "personal"
	AccountShared   AccountType = "shared"
)

// Character mirrors the host's character record
type Character struct {
	CharID    int64  `db:"char_id" json:"charId"`
	StateID   string `db:"state_id" json:"stateId"`
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
}

// DisplayName returns "First Last"
func (c Character) DisplayName() string {
	return c.FirstName + " " + c.LastName
}

// Account represents a bank account
type Account struct {
	ID        int64       `db:"id" json:"id"`
	Label     string      `db:"label" json:"label"`
	Owner     *int64      `db:"owner" json:"owner,omitempty"`
	Group     string      `db:"group_name" json:"group,omitempty"`
	Balance   int64       `db:"balance" json:"balance"`
	IsDefault bool        `db:"is_default" json:"isDefault"`
	Type      AccountType `db:"type" json:"type"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

// AccountAccess represents the relationship between characters and accounts (for sharing)
type AccountAccess struct {
	AccountID int64     `db:"account_id" json:"accountId"`
	CharID    int64     `db:"char_id" json:"charId"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Transaction is an append-only ledger entry
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	Reference   string    `db:"reference" json:"reference"`
	ActorID     *int64    `db:"actor_id" json:"actorId,omitempty"`
	FromID      *int64    `db:"from_id" json:"fromId,omitempty"`
	ToID        *int64    `db:"to_id" json:"toId,omitempty"`
	Amount      int64     `db:"amount" json:"amount"`
	FromBalance *int64    `db:"from_balance" json:"fromBalance,omitempty"`
	ToBalance   *int64    `db:"to_balance" json:"toBalance,omitempty"`
	Date        time.Time `db:"date" json:"date"`
	Reason      string    `db:"reason" json:"reason"`

	// Replayed is set when the entry was returned for a retried reference
	// instead of being written again.
	Replayed bool `db:"-" json:"-"`
}

// Direction of a ledger entry relative to a viewed account
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// DirectionFor derives the direction of t as seen from accountID
func (t Transaction) DirectionFor(accountID int64) Direction {
	if t.ToID != nil && *t.ToID == accountID {
		return Inbound
	}
	return Outbound
}

// AccountView is an account as listed for a viewing character
type AccountView struct {
	ID        int64       `json:"id"`
	Label     string      `json:"label"`
	Group     string      `json:"group,omitempty"`
	Balance   int64       `json:"balance"`
	IsDefault bool        `json:"isDefault"`
	Type      AccountType `json:"type"`
	Owner     string      `json:"owner"`
	Role      Role        `json:"role"`
}

// AccessRow is one row of the access listing joined with character data
type AccessRow struct {
	Account
	OwnerFirstName *string `db:"owner_first_name"`
	OwnerLastName  *string `db:"owner_last_name"`
	Role           Role    `db:"role"`
}

// AccessTableUser is one member of a shared account
type AccessTableUser struct {
	Name    string `db:"name" json:"name"`
	StateID string `db:"state_id" json:"stateId"`
	Role    Role   `db:"role" json:"role"`
}

// TransactionView is a ledger entry annotated for display
type TransactionView struct {
	Amount  int64     `json:"amount"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
	Type    Direction `json:"type"`
}

// NewTransactionView annotates t with its direction relative to accountID
func NewTransactionView(t Transaction, accountID int64) TransactionView {
	return TransactionView{
		Amount:  t.Amount,
		Date:    t.Date,
		Message: t.Reason,
		Type:    t.DirectionFor(accountID),
	}
}

package models

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Request models
type TokenRequest struct {
	Key      string `json:"key" binding:"required"`
	CallerID string `json:"callerId"`
}

type RegisterSessionRequest struct {
	CallerID  string    `json:"callerId" binding:"required"`
	Character Character `json:"character"`
}

type OpenBankRequest struct {
	Cash int64 `json:"cash"`
	// Language is the player's preferred language, Accept-Language syntax
	Language string `json:"language"`
}

type CashUpdateRequest struct {
	Cash int64 `json:"cash"`
}

type CreateAccountRequest struct {
	Name   string `json:"name" binding:"required"`
	Shared bool   `json:"shared"`
}

type AccountRequest struct {
	AccountID int64 `json:"accountId" binding:"required"`
}

// Amount is a money amount exactly as the UI sent it: a JSON number or a
// numeric string. It is decoded late so a malformed value is reported as an
// invalid amount instead of a malformed request.
type Amount []byte

// NewAmount returns n as an Amount
func NewAmount(n int64) Amount {
	return Amount(strconv.FormatInt(n, 10))
}

// AmountString returns s as a quoted Amount
func AmountString(s string) Amount {
	return Amount(strconv.Quote(s))
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return []byte("null"), nil
	}
	return a, nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = append((*a)[:0], data...)
	return nil
}

// Decimal decodes the amount. A missing or null amount is zero.
func (a Amount) Decimal() (decimal.Decimal, error) {
	var d decimal.Decimal
	if len(a) == 0 {
		return d, nil
	}
	if err := d.UnmarshalJSON(a); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

type UpdateBalanceRequest struct {
	AccountID int64  `json:"accountId" binding:"required"`
	Amount    Amount `json:"amount"`
}

// TransferType selects how TransferRequest.Target is read
type TransferType string

const (
	TransferToAccount TransferType = "account"
	TransferToPerson  TransferType = "person"
)

type TransferRequest struct {
	FromAccountID int64          `json:"fromAccountId" binding:"required"`
	Target        TransferTarget `json:"target"`
	TransferType  TransferType   `json:"transferType" binding:"required,oneof=account person"`
	Amount        Amount         `json:"amount"`
	Reason        string         `json:"reason"`
}

type PageRequest struct {
	AccountID int64  `json:"accountId" binding:"required"`
	Page      int    `json:"page" binding:"min=0"`
	Search    string `json:"search"`
}

type AddUserRequest struct {
	AccountID int64  `json:"accountId" binding:"required"`
	StateID   string `json:"stateId" binding:"required"`
	Role      string `json:"role" binding:"required"`
}

type ManageUserRequest struct {
	AccountID     int64  `json:"accountId" binding:"required"`
	TargetStateID string `json:"targetStateId" binding:"required"`
	Values        struct {
		Role string `json:"role" binding:"required"`
	} `json:"values"`
}

type RemoveUserRequest struct {
	AccountID     int64  `json:"accountId" binding:"required"`
	TargetStateID string `json:"targetStateId" binding:"required"`
}

type TransferOwnershipRequest struct {
	AccountID     int64  `json:"accountId" binding:"required"`
	TargetStateID string `json:"targetStateId" binding:"required"`
}

type RenameAccountRequest struct {
	AccountID int64  `json:"accountId" binding:"required"`
	Name      string `json:"name" binding:"required"`
}

// Response models
type TokenResponse struct {
	Status    string `json:"status"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type DashboardData struct {
	Balance      int64             `json:"balance"`
	Overview     []any             `json:"overview"`
	Transactions []TransactionView `json:"transactions"`
	Invoices     []any             `json:"invoices"`
}

type AccessTableData struct {
	NumberOfPages int               `json:"numberOfPages"`
	Users         []AccessTableUser `json:"users"`
}

type TransactionsPage struct {
	NumberOfPages int               `json:"numberOfPages"`
	Transactions  []TransactionView `json:"transactions"`
}

type OpenBankResponse struct {
	Cash     int64     `json:"cash"`
	InitData *InitData `json:"initData,omitempty"`
}

type InitData struct {
	Locales map[string]string `json:"locales"`
}

type CashUpdateResponse struct {
	Refresh bool  `json:"refresh"`
	Cash    int64 `json:"cash"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

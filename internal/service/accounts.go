package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/banking-server/internal/access"
	"github.com/rongwang/banking-server/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// maxLabelLength matches the accounts.label column
const maxLabelLength = 50

// GetAccounts lists the accounts the caller has any role on. The default flag
// is only shown to the account's owner.
func (s *DefaultService) GetAccounts(ctx context.Context, callerID string) (_ []models.AccountView, err error) {
	ctx, span := s.startSpan(ctx, "GetAccounts")
	defer func() { endSpan(span, err) }()

	charID, err := s.directory.CharacterID(callerID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.GetCharacterAccounts(ctx, charID)
	if err != nil {
		return nil, fmt.Errorf("error getting accounts: %w", err)
	}

	views := make([]models.AccountView, 0, len(rows))
	for _, row := range rows {
		view := models.AccountView{
			ID:      row.ID,
			Label:   row.Label,
			Group:   row.Group,
			Balance: row.Balance,
			Type:    row.Type,
			Role:    row.Role,
		}
		if row.Owner != nil && *row.Owner == charID {
			view.IsDefault = row.IsDefault
		}
		if row.OwnerFirstName != nil && row.OwnerLastName != nil {
			view.Owner = *row.OwnerFirstName + " " + *row.OwnerLastName
		}
		views = append(views, view)
	}

	return views, nil
}

func (s *DefaultService) CreateAccount(
	ctx context.Context,
	callerID string,
	req models.CreateAccountRequest,
) (_ *models.Account, err error) {
	ctx, span := s.startSpan(ctx, "CreateAccount", attribute.Bool("account.shared", req.Shared))
	defer func() { endSpan(span, err) }()

	charID, err := s.directory.CharacterID(callerID)
	if err != nil {
		return nil, err
	}

	label, err := normalizeLabel(req.Name)
	if err != nil {
		return nil, err
	}

	accountType := models.AccountPersonal
	if req.Shared {
		accountType = models.AccountShared
	}

	account, err := s.repo.CreateAccount(ctx, charID, label, accountType)
	if err != nil {
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	return account, nil
}

func (s *DefaultService) DeleteAccount(ctx context.Context, callerID string, accountID int64) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteAccount", attribute.Int64("account.id", accountID))
	defer func() { endSpan(span, err) }()

	if _, _, err := s.authorize(ctx, callerID, accountID, access.OpDelete); err != nil {
		return err
	}

	if err := s.repo.DeleteAccount(ctx, accountID); err != nil {
		return fmt.Errorf("error deleting account: %w", err)
	}

	return nil
}

func (s *DefaultService) RenameAccount(ctx context.Context, callerID string, req models.RenameAccountRequest) (err error) {
	ctx, span := s.startSpan(ctx, "RenameAccount", attribute.Int64("account.id", req.AccountID))
	defer func() { endSpan(span, err) }()

	if _, _, err := s.authorize(ctx, callerID, req.AccountID, access.OpRename); err != nil {
		return err
	}

	label, err := normalizeLabel(req.Name)
	if err != nil {
		return err
	}

	if err := s.repo.RenameAccount(ctx, req.AccountID, label); err != nil {
		return fmt.Errorf("error renaming account: %w", err)
	}

	return nil
}

// ConvertToShared turns one of the caller's personal accounts into a shared
// one. The default account stays personal.
func (s *DefaultService) ConvertToShared(ctx context.Context, callerID string, accountID int64) (err error) {
	ctx, span := s.startSpan(ctx, "ConvertToShared", attribute.Int64("account.id", accountID))
	defer func() { endSpan(span, err) }()

	if _, _, err := s.authorize(ctx, callerID, accountID, access.OpConvertToShared); err != nil {
		return err
	}

	if err := s.repo.ConvertToShared(ctx, accountID); err != nil {
		return fmt.Errorf("error converting account: %w", err)
	}

	return nil
}

// GetDashboard summarizes the caller's default account
func (s *DefaultService) GetDashboard(ctx context.Context, callerID string) (_ *models.DashboardData, err error) {
	ctx, span := s.startSpan(ctx, "GetDashboard")
	defer func() { endSpan(span, err) }()

	charID, err := s.directory.CharacterID(callerID)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.GetDefaultAccount(ctx, charID)
	if err != nil {
		return nil, fmt.Errorf("error getting default account: %w", err)
	}

	if account == nil {
		return nil, fmt.Errorf("%w: character %d has no default account", models.ErrAccountNotFound, charID)
	}

	transactions, err := s.repo.RecentTransactions(ctx, account.ID, s.cfg.DashboardLimit)
	if err != nil {
		return nil, fmt.Errorf("error getting transactions: %w", err)
	}

	return &models.DashboardData{
		Balance:      account.Balance,
		Overview:     []any{},
		Transactions: transactionViews(transactions, account.ID),
		Invoices:     []any{},
	}, nil
}

// GetTransactions returns one page of an account's ledger
func (s *DefaultService) GetTransactions(
	ctx context.Context,
	callerID string,
	req models.PageRequest,
) (_ *models.TransactionsPage, err error) {
	ctx, span := s.startSpan(ctx, "GetTransactions",
		attribute.Int64("account.id", req.AccountID), attribute.Int("page", req.Page))
	defer func() { endSpan(span, err) }()

	if _, _, err := s.authorize(ctx, callerID, req.AccountID, access.OpView); err != nil {
		return nil, err
	}

	transactions, pages, err := s.repo.ListTransactions(ctx, req.AccountID, req.Page, s.cfg.TransactionPageSize)
	if err != nil {
		return nil, fmt.Errorf("error getting transactions: %w", err)
	}

	return &models.TransactionsPage{
		NumberOfPages: pages,
		Transactions:  transactionViews(transactions, req.AccountID),
	}, nil
}

func transactionViews(transactions []models.Transaction, accountID int64) []models.TransactionView {
	views := make([]models.TransactionView, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, models.NewTransactionView(t, accountID))
	}
	return views
}

func normalizeLabel(name string) (string, error) {
	label := strings.TrimSpace(name)
	if label == "" || len([]rune(label)) > maxLabelLength {
		return "", fmt.Errorf("%w: account name must be 1-%d characters", models.ErrInvalidRequest, maxLabelLength)
	}
	return label, nil
}

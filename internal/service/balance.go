package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/banking-server/internal/access"
	"github.com/rongwang/banking-server/internal/events"
	"github.com/rongwang/banking-server/internal/models"
	"github.com/rongwang/banking-server/internal/repository"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// MaxAmount is the largest amount the UI can represent exactly (2^53 - 1)
var MaxAmount = decimal.NewFromInt(1<<53 - 1)

// maxReasonLength matches the accounts_transactions.reason column
const maxReasonLength = 255

// ParseAmount validates a money amount: a whole, positive number no larger
// than MaxAmount. Anything that is not a number is invalid too.
func ParseAmount(raw models.Amount) (int64, error) {
	amount, err := raw.Decimal()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", models.ErrInvalidAmount, string(raw))
	}
	if !amount.IsInteger() || !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return 0, fmt.Errorf("%w: %s", models.ErrInvalidAmount, amount.String())
	}
	return amount.IntPart(), nil
}

func (s *DefaultService) Deposit(
	ctx context.Context,
	callerID, reference string,
	req models.UpdateBalanceRequest,
) (_ *models.BalanceResponse, err error) {
	ctx, span := s.startSpan(ctx, "Deposit", attribute.Int64("account.id", req.AccountID))
	defer func() { endSpan(span, err) }()

	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	charID, _, err := s.authorize(ctx, callerID, req.AccountID, access.OpDeposit)
	if err != nil {
		return nil, err
	}

	txn, err := s.repo.Deposit(ctx, repository.BalanceChange{
		AccountID: req.AccountID,
		Amount:    amount,
		ActorID:   charID,
		Reference: reference,
		Reason:    "Deposit",
	})
	if err != nil {
		return nil, fmt.Errorf("error depositing: %w", err)
	}

	span.SetAttributes(attribute.Bool("replayed", txn.Replayed))
	s.publish(ctx, events.KindDeposit, txn)

	return &models.BalanceResponse{Balance: *txn.ToBalance}, nil
}

func (s *DefaultService) Withdraw(
	ctx context.Context,
	callerID, reference string,
	req models.UpdateBalanceRequest,
) (_ *models.BalanceResponse, err error) {
	ctx, span := s.startSpan(ctx, "Withdraw", attribute.Int64("account.id", req.AccountID))
	defer func() { endSpan(span, err) }()

	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	charID, _, err := s.authorize(ctx, callerID, req.AccountID, access.OpWithdraw)
	if err != nil {
		return nil, err
	}

	txn, err := s.repo.Withdraw(ctx, repository.BalanceChange{
		AccountID: req.AccountID,
		Amount:    amount,
		ActorID:   charID,
		Reference: reference,
		Reason:    "Withdrawal",
	})
	if err != nil {
		return nil, fmt.Errorf("error withdrawing: %w", err)
	}

	span.SetAttributes(attribute.Bool("replayed", txn.Replayed))
	s.publish(ctx, events.KindWithdraw, txn)

	return &models.BalanceResponse{Balance: *txn.FromBalance}, nil
}

// Transfer moves money from one of the caller's accounts to another account,
// or to a person's default account. The response carries the source balance.
func (s *DefaultService) Transfer(
	ctx context.Context,
	callerID, reference string,
	req models.TransferRequest,
) (_ *models.BalanceResponse, err error) {
	ctx, span := s.startSpan(ctx, "Transfer",
		attribute.Int64("account.id", req.FromAccountID),
		attribute.String("transfer.type", string(req.TransferType)))
	defer func() { endSpan(span, err) }()

	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	charID, _, err := s.authorize(ctx, callerID, req.FromAccountID, access.OpTransfer)
	if err != nil {
		return nil, err
	}

	toAccountID, err := s.resolveTransferTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	if toAccountID == req.FromAccountID {
		return nil, fmt.Errorf("%w: cannot transfer to the same account", models.ErrInvalidTarget)
	}

	reason := strings.TrimSpace(req.Reason)
	if len(reason) > maxReasonLength {
		return nil, fmt.Errorf("%w: reason is too long", models.ErrInvalidRequest)
	}

	txn, err := s.repo.TransferBalance(ctx, repository.Transfer{
		FromAccountID: req.FromAccountID,
		ToAccountID:   toAccountID,
		Amount:        amount,
		ActorID:       charID,
		Reference:     reference,
		Reason:        reason,
	})
	if err != nil {
		return nil, fmt.Errorf("error transferring: %w", err)
	}

	span.SetAttributes(attribute.Bool("replayed", txn.Replayed))
	s.publish(ctx, events.KindTransfer, txn)

	return &models.BalanceResponse{Balance: *txn.FromBalance}, nil
}

func (s *DefaultService) resolveTransferTarget(ctx context.Context, req models.TransferRequest) (int64, error) {
	switch req.TransferType {
	case models.TransferToAccount:
		id, ok := req.Target.AccountID()
		if !ok {
			return 0, fmt.Errorf("%w: %q is not an account id", models.ErrAccountNotFound, req.Target)
		}
		return id, nil

	case models.TransferToPerson:
		targetCharID, err := s.directory.ResolveStateID(ctx, string(req.Target))
		if err != nil {
			return 0, err
		}

		account, err := s.repo.GetDefaultAccount(ctx, targetCharID)
		if err != nil {
			return 0, fmt.Errorf("error getting default account: %w", err)
		}

		if account == nil {
			return 0, fmt.Errorf("%w: character %d has no default account", models.ErrAccountNotFound, targetCharID)
		}
		return account.ID, nil

	default:
		return 0, fmt.Errorf("%w: unknown transfer type %q", models.ErrInvalidRequest, req.TransferType)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rongwang/banking-server/internal/access"
	"github.com/rongwang/banking-server/internal/events"
	"github.com/rongwang/banking-server/internal/models"
	"github.com/rongwang/banking-server/internal/repository"
	"github.com/rongwang/banking-server/internal/session"
	"github.com/rongwang/banking-server/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	IssueToken(ctx context.Context, req models.TokenRequest) (*models.TokenResponse, error)

	// Player sessions
	RegisterSession(ctx context.Context, req models.RegisterSessionRequest) error
	DropSession(ctx context.Context, callerID string) error
	OpenBank(ctx context.Context, callerID string, req models.OpenBankRequest) (*models.OpenBankResponse, error)
	CloseBank(ctx context.Context, callerID string) error
	UpdateCash(ctx context.Context, callerID string, cash int64) (*models.CashUpdateResponse, error)

	// Account operations
	GetAccounts(ctx context.Context, callerID string) ([]models.AccountView, error)
	CreateAccount(ctx context.Context, callerID string, req models.CreateAccountRequest) (*models.Account, error)
	DeleteAccount(ctx context.Context, callerID string, accountID int64) error
	RenameAccount(ctx context.Context, callerID string, req models.RenameAccountRequest) error
	ConvertToShared(ctx context.Context, callerID string, accountID int64) error
	GetDashboard(ctx context.Context, callerID string) (*models.DashboardData, error)
	GetTransactions(ctx context.Context, callerID string, req models.PageRequest) (*models.TransactionsPage, error)

	// Balance operations. reference makes a retried request idempotent and may be empty.
	Deposit(ctx context.Context, callerID, reference string, req models.UpdateBalanceRequest) (*models.BalanceResponse, error)
	Withdraw(ctx context.Context, callerID, reference string, req models.UpdateBalanceRequest) (*models.BalanceResponse, error)
	Transfer(ctx context.Context, callerID, reference string, req models.TransferRequest) (*models.BalanceResponse, error)

	// Account sharing
	ListUsers(ctx context.Context, callerID string, req models.PageRequest) (*models.AccessTableData, error)
	AddUser(ctx context.Context, callerID string, req models.AddUserRequest) error
	ManageUser(ctx context.Context, callerID string, req models.ManageUserRequest) error
	RemoveUser(ctx context.Context, callerID string, req models.RemoveUserRequest) error
	TransferOwnership(ctx context.Context, callerID string, req models.TransferOwnershipRequest) error
}

// Config holds the tunables of DefaultService
type Config struct {
	Policy              access.Policy
	AccessPageSize      int
	TransactionPageSize int
	DashboardLimit      int
	JWTSecret           string
	// HostKeyHash is the bcrypt hash of the host bridge's API key
	HostKeyHash   string
	TokenDuration time.Duration
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo      repository.Repository
	sessions  *session.Registry
	directory CharacterDirectory
	locales   LocaleSource
	publisher events.Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	cfg       Config
}

// LocaleSource provides the UI strings sent on the first overlay open
type LocaleSource interface {
	Match(acceptLanguage string) language.Tag
	Locales(tag language.Tag) map[string]string
}

// NewDefaultService creates a new DefaultService. A nil publisher drops events.
func NewDefaultService(
	repo repository.Repository,
	sessions *session.Registry,
	locales LocaleSource,
	publisher events.Publisher,
	logger *zap.Logger,
	cfg Config,
) *DefaultService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.Policy == nil {
		cfg.Policy = access.DefaultPolicy()
	}
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = 24 * time.Hour // 24 hours token validity
	}

	return &DefaultService{
		repo:      repo,
		sessions:  sessions,
		directory: NewDirectory(sessions, repo),
		locales:   locales,
		publisher: publisher,
		logger:    logger,
		tracer:    telemetry.Tracer(),
		cfg:       cfg,
	}
}

// startSpan opens a span for a service operation
func (s *DefaultService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "bank."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span before ending it
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// authorize resolves the caller's character and checks its role on the account
func (s *DefaultService) authorize(
	ctx context.Context,
	callerID string,
	accountID int64,
	op access.Operation,
) (charID int64, role models.Role, err error) {
	charID, err = s.directory.CharacterID(callerID)
	if err != nil {
		return 0, models.RoleNone, err
	}

	role, err = s.repo.RoleOf(ctx, accountID, charID)
	if err != nil {
		return 0, models.RoleNone, fmt.Errorf("error getting account role: %w", err)
	}

	if err := s.cfg.Policy.Check(op, role); err != nil {
		return 0, models.RoleNone, err
	}

	return charID, role, nil
}

// publish announces a committed ledger entry. Replays were announced the
// first time and failures are only logged.
func (s *DefaultService) publish(ctx context.Context, kind events.Kind, txn *models.Transaction) {
	if txn.Replayed {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewTransactionPosted(kind, txn)); err != nil {
		s.logger.Warn("failed to publish transaction event",
			zap.String("reference", txn.Reference),
			zap.Int64("transaction_id", txn.ID),
			zap.Error(err),
		)
	}
}

// IsDomainError reports whether err is one of the expected outcomes rather
// than a persistence failure
func IsDomainError(err error) bool {
	for _, target := range []error{
		models.ErrAuthorizationDenied,
		models.ErrInvalidAmount,
		models.ErrInsufficientFunds,
		models.ErrAccountNotFound,
		models.ErrTargetNotFound,
		models.ErrInvalidRole,
		models.ErrInvalidTarget,
		models.ErrUnknownCaller,
		models.ErrConflict,
		models.ErrInvalidRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var _ Service = (*DefaultService)(nil)

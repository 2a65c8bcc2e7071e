package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/banking-server/internal/locale"
	"github.com/rongwang/banking-server/internal/models"
	"github.com/rongwang/banking-server/internal/service"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader lets a client retry a money movement safely
const IdempotencyKeyHeader = "Idempotency-Key"

// Handler handles API requests
type Handler struct {
	service service.Service
	locales *locale.Bundle
	logger  *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, locales *locale.Bundle, logger *zap.Logger) *Handler {
	return &Handler{
		service: svc,
		locales: locales,
		logger:  logger,
	}
}

// SetupRoutes configures the API routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/token", h.IssueToken)

		// Host bridge routes
		host := api.Group("/host")
		host.Use(HostAuthMiddleware())
		{
			host.POST("/sessions", h.RegisterSession)
			host.DELETE("/sessions/:callerId", h.DropSession)
			host.POST("/sessions/:callerId/open", h.OpenBank)
			host.POST("/sessions/:callerId/cash", h.UpdateCash)
		}

		// Player routes
		player := api.Group("")
		player.Use(AuthMiddleware(""))
		{
			player.GET("/locales", h.GetLocales)
			player.POST("/nui/:operation", h.Dispatch)
		}
	}
}

// operation handles one bank UI callback for the authenticated caller
type operation func(h *Handler, c *gin.Context, callerID string) (any, error)

var operations = map[string]operation{
	"exit":                   (*Handler).exit,
	"getAccounts":            (*Handler).getAccounts,
	"createAccount":          (*Handler).createAccount,
	"deleteAccount":          (*Handler).deleteAccount,
	"renameAccount":          (*Handler).renameAccount,
	"convertAccountToShared": (*Handler).convertAccountToShared,
	"depositMoney":           (*Handler).depositMoney,
	"withdrawMoney":          (*Handler).withdrawMoney,
	"transferMoney":          (*Handler).transferMoney,
	"getDashboardData":       (*Handler).getDashboardData,
	"getTransactions":        (*Handler).getTransactions,
	"getAccountUsers":        (*Handler).getAccountUsers,
	"addUserToAccount":       (*Handler).addUserToAccount,
	"manageUser":             (*Handler).manageUser,
	"removeUser":             (*Handler).removeUser,
	"transferOwnership":      (*Handler).transferOwnership,
}

// Dispatch routes POST /api/nui/:operation to its handler
func (h *Handler) Dispatch(c *gin.Context) {
	name := c.Param("operation")
	op, ok := operations[name]
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "invalid_request",
			Message: fmt.Sprintf("unknown operation %q", name),
		})
		return
	}

	data, err := op(h, c, c.GetString(callerIDKey))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.Response{Status: "success", Data: data})
}

func (h *Handler) exit(c *gin.Context, callerID string) (any, error) {
	return true, h.service.CloseBank(c.Request.Context(), callerID)
}

func (h *Handler) getAccounts(c *gin.Context, callerID string) (any, error) {
	return h.service.GetAccounts(c.Request.Context(), callerID)
}

func (h *Handler) createAccount(c *gin.Context, callerID string) (any, error) {
	var req models.CreateAccountRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return h.service.CreateAccount(c.Request.Context(), callerID, req)
}

// deleteAccount accepts either a bare account id or {"accountId": id}
func (h *Handler) deleteAccount(c *gin.Context, callerID string) (any, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}

	var accountID int64
	if err := json.Unmarshal(body, &accountID); err != nil {
		var req models.AccountRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
		}
		accountID = req.AccountID
	}
	if accountID <= 0 {
		return nil, fmt.Errorf("%w: accountId is required", models.ErrInvalidRequest)
	}

	return true, h.service.DeleteAccount(c.Request.Context(), callerID, accountID)
}

func (h *Handler) renameAccount(c *gin.Context, callerID string) (any, error) {
	var req models.RenameAccountRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return true, h.service.RenameAccount(c.Request.Context(), callerID, req)
}

func (h *Handler) convertAccountToShared(c *gin.Context, callerID string) (any, error) {
	var req models.AccountRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return true, h.service.ConvertToShared(c.Request.Context(), callerID, req.AccountID)
}

func (h *Handler) depositMoney(c *gin.Context, callerID string) (any, error) {
	var req models.UpdateBalanceRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return h.service.Deposit(c.Request.Context(), callerID, c.GetHeader(IdempotencyKeyHeader), req)
}

func (h *Handler) withdrawMoney(c *gin.Context, callerID string) (any, error) {
	var req models.UpdateBalanceRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return h.service.Withdraw(c.Request.Context(), callerID, c.GetHeader(IdempotencyKeyHeader), req)
}

func (h *Handler) transferMoney(c *gin.Context, callerID string) (any, error) {
	var req models.TransferRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return h.service.Transfer(c.Request.Context(), callerID, c.GetHeader(IdempotencyKeyHeader), req)
}

func (h *Handler) getDashboardData(c *gin.Context, callerID string) (any, error) {
	return h.service.GetDashboard(c.Request.Context(), callerID)
}

func (h *Handler) getTransactions(c *gin.Context, callerID string) (any, error) {
	var req models.PageRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return h.service.GetTransactions(c.Request.Context(), callerID, req)
}

func (h *Handler) getAccountUsers(c *gin.Context, callerID string) (any, error) {
	var req models.PageRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return h.service.ListUsers(c.Request.Context(), callerID, req)
}

func (h *Handler) addUserToAccount(c *gin.Context, callerID string) (any, error) {
	var req models.AddUserRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return true, h.service.AddUser(c.Request.Context(), callerID, req)
}

func (h *Handler) manageUser(c *gin.Context, callerID string) (any, error) {
	var req models.ManageUserRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return true, h.service.ManageUser(c.Request.Context(), callerID, req)
}

func (h *Handler) removeUser(c *gin.Context, callerID string) (any, error) {
	var req models.RemoveUserRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return true, h.service.RemoveUser(c.Request.Context(), callerID, req)
}

func (h *Handler) transferOwnership(c *gin.Context, callerID string) (any, error) {
	var req models.TransferOwnershipRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	return true, h.service.TransferOwnership(c.Request.Context(), callerID, req)
}

// IssueToken handles POST /api/auth/token
func (h *Handler) IssueToken(c *gin.Context) {
	var req models.TokenRequest
	if err := bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	resp, err := h.service.IssueToken(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterSession handles POST /api/host/sessions
func (h *Handler) RegisterSession(c *gin.Context) {
	var req models.RegisterSessionRequest
	if err := bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.service.RegisterSession(c.Request.Context(), req); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.Response{Status: "success", Data: true})
}

// DropSession handles DELETE /api/host/sessions/:callerId
func (h *Handler) DropSession(c *gin.Context) {
	if err := h.service.DropSession(c.Request.Context(), c.Param("callerId")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.Response{Status: "success", Data: true})
}

// OpenBank handles POST /api/host/sessions/:callerId/open
func (h *Handler) OpenBank(c *gin.Context) {
	var req models.OpenBankRequest
	if err := bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	if req.Language == "" {
		req.Language = c.GetHeader("Accept-Language")
	}

	resp, err := h.service.OpenBank(c.Request.Context(), c.Param("callerId"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.Response{Status: "success", Data: resp})
}

// UpdateCash handles POST /api/host/sessions/:callerId/cash
func (h *Handler) UpdateCash(c *gin.Context) {
	var req models.CashUpdateRequest
	if err := bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	resp, err := h.service.UpdateCash(c.Request.Context(), c.Param("callerId"), req.Cash)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.Response{Status: "success", Data: resp})
}

// GetLocales handles GET /api/locales
func (h *Handler) GetLocales(c *gin.Context) {
	tag := h.locales.Match(c.GetHeader("Accept-Language"))
	c.JSON(http.StatusOK, models.Response{Status: "success", Data: h.locales.Locales(tag)})
}

// bind decodes the JSON body into req
func bind(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	return nil
}

// errorMapping ties an error to its HTTP status and UI token
type errorMapping struct {
	err    error
	status int
	token  string
}

var errorMappings = []errorMapping{
	{models.ErrAuthorizationDenied, http.StatusForbidden, "unauthorized"},
	{models.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{models.ErrInsufficientFunds, http.StatusConflict, "insufficient_funds"},
	{models.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{models.ErrTargetNotFound, http.StatusNotFound, "state_id_not_exists"},
	{models.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{models.ErrInvalidTarget, http.StatusBadRequest, "invalid_target"},
	{models.ErrUnknownCaller, http.StatusNotFound, "unknown_character"},
	{models.ErrConflict, http.StatusConflict, "conflict"},
	{models.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{service.ErrInvalidHostKey, http.StatusUnauthorized, "unauthorized"},
}

// ErrorCode returns the HTTP status and UI token for err. Unknown errors are
// persistence failures.
func ErrorCode(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.token
		}
	}
	return http.StatusInternalServerError, "generic_failure"
}

// respondError writes err as a localized ErrorResponse. Denials are reported
// with status "denied", everything else with "error".
func (h *Handler) respondError(c *gin.Context, err error) {
	status, token := ErrorCode(err)

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	} else {
		_ = c.Error(err)
	}

	result := "error"
	if status == http.StatusForbidden {
		result = "denied"
	}

	tag := h.locales.Match(c.GetHeader("Accept-Language"))
	c.JSON(status, models.ErrorResponse{
		Status:  result,
		Code:    token,
		Message: h.locales.Message(tag, token),
	})
}

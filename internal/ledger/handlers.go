package ledger

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/ksred/klear-trade/pkg/response"
)

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetAccountHandler returns the caller's own account. Accounts of other
// clients are reported as missing.
func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("account_id")
		if accountID == "" {
			response.BadRequest(c, "Account ID is required")
			return
		}

		account, err := h.service.Account(c.Request.Context(), accountID)
		if err == nil && account.ClientID != c.GetString("clientID") {
			account, err = nil, types.ErrAccountNotFound
		}
		response.Handle(c, account, err)
	}
}

func (h *GinHandlers) GetEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("account_id")
		account, err := h.service.Account(c.Request.Context(), accountID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if account.ClientID != c.GetString("clientID") {
			response.Handle(c, nil, types.ErrAccountNotFound)
			return
		}

		entries, err := h.service.Entries(c.Request.Context(), accountID)
		response.Handle(c, entries, err)
	}
}

func (h *GinHandlers) OpenAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OpenAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		account, err := h.service.OpenAccount(c.Request.Context(), req)
		response.Handle(c, account, err)
	}
}

func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		if req.Reference == "" {
			req.Reference = fmt.Sprintf("DEP_%s", uuid.New().String())
		}

		account, err := h.service.Deposit(c.Request.Context(), c.Param("account_id"), req.Amount, req.Reference)
		response.Handle(c, account, err)
	}
}

func (h *GinHandlers) SetStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		account, err := h.service.SetActive(c.Request.Context(), c.Param("account_id"), *req.Active)
		response.Handle(c, account, err)
	}
}

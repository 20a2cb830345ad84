package handler

import (
	"fastpay/internal/adapter/http/dto"
	"fastpay/internal/core/ports"
	"fastpay/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves read-only account views.
type AccountHandler struct {
	querySvc ports.QueryService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(querySvc ports.QueryService) *AccountHandler {
	return &AccountHandler{querySvc: querySvc}
}

// GetBalance handles GET /api/balance/:accountId.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		response.Error(c, errInvalidAccountID())
		return
	}

	balance, err := h.querySvc.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance.InexactFloat64()})
}

// GetHistory handles GET /api/transactions/:accountId?limit=&offset=.
func (h *AccountHandler) GetHistory(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		response.Error(c, errInvalidAccountID())
		return
	}

	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}

	history, err := h.querySvc.GetHistory(c.Request.Context(), ports.HistoryParams{
		AccountID: accountID,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewHistoryResponse(history))
}

// GetAccount handles GET /api/accounts/:accountId.
func (h *AccountHandler) GetAccount(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		response.Error(c, errInvalidAccountID())
		return
	}

	account, err := h.querySvc.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAccountResponse(account))
}

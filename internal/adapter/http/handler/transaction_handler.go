package handler

import (
	"fastpay/internal/adapter/http/dto"
	"fastpay/internal/core/ports"
	"fastpay/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransactionHandler handles balance-affecting endpoints.
type TransactionHandler struct {
	txSvc ports.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(txSvc ports.TransactionService) *TransactionHandler {
	return &TransactionHandler{txSvc: txSvc}
}

// ApplyTransaction handles POST /api/transaction.
func (h *TransactionHandler) ApplyTransaction(c *gin.Context) {
	var req dto.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.txSvc.ApplyTransaction(c.Request.Context(), ports.TransactionRequest{
		AccountID:   req.AccountID(),
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionResponse(result))
}

// Transfer handles POST /api/transfer.
func (h *TransactionHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.txSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionResponse(result))
}

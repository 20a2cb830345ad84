package dto

import (
	"time"

	"fastpay/internal/core/domain"
	"fastpay/internal/core/ports"

	"github.com/shopspring/decimal"
)

// TransactionRequest is the request body for a deposit or withdrawal.
// Amount accepts a JSON number or a numeric string.
type TransactionRequest struct {
	SenderID    string          `json:"sender_id" binding:"account_id"`
	SenderUPIID string          `json:"sender_upi_id" binding:"account_id"` // alias used by the browser client
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
}

// AccountID returns sender_id, falling back to sender_upi_id.
func (r *TransactionRequest) AccountID() string {
	if r.SenderID != "" {
		return r.SenderID
	}
	return r.SenderUPIID
}

// TransferRequest is the request body for moving money between two accounts.
type TransferRequest struct {
	SenderID    string          `json:"sender_id" binding:"required,account_id"`
	ReceiverID  string          `json:"receiver_id" binding:"required,account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// HistoryQuery holds the paging parameters of a history request.
type HistoryQuery struct {
	Limit  int `form:"limit" binding:"min=0"`
	Offset int `form:"offset" binding:"min=0"`
}

// BalanceResponse is the response body for a balance query.
type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

// RecordResponse is one history entry.
type RecordResponse struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	Type           string    `json:"type"`
	Amount         float64   `json:"amount"`
	Description    string    `json:"description"`
	CounterpartyID *string   `json:"counterparty_id,omitempty"`
	BalanceAfter   float64   `json:"balance_after"`
	Timestamp      time.Time `json:"timestamp"`
}

// HistoryResponse carries the balance and one page of records as separate fields.
type HistoryResponse struct {
	Balance float64          `json:"balance"`
	Records []RecordResponse `json:"records"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// TransactionResponse is the response body of a successful transaction or transfer.
type TransactionResponse struct {
	Success     bool            `json:"success"`
	Balance     float64         `json:"balance"`
	Transaction *RecordResponse `json:"transaction,omitempty"`
}

// AccountResponse is the public account profile.
type AccountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecordResponse converts a domain record.
func NewRecordResponse(r *domain.TransactionRecord) RecordResponse {
	return RecordResponse{
		ID:             r.ID.String(),
		AccountID:      r.AccountID,
		Type:           string(r.Type),
		Amount:         r.Amount.InexactFloat64(),
		Description:    r.Description,
		CounterpartyID: r.CounterpartyID,
		BalanceAfter:   r.BalanceAfter.InexactFloat64(),
		Timestamp:      r.CreatedAt,
	}
}

// NewHistoryResponse converts a history page. Records is never null.
func NewHistoryResponse(h *ports.History) HistoryResponse {
	records := make([]RecordResponse, 0, len(h.Records))
	for i := range h.Records {
		records = append(records, NewRecordResponse(&h.Records[i]))
	}
	return HistoryResponse{
		Balance: h.Balance.InexactFloat64(),
		Records: records,
		Total:   h.Total,
		Limit:   h.Limit,
		Offset:  h.Offset,
	}
}

// NewTransactionResponse converts a service result.
func NewTransactionResponse(res *ports.TransactionResult) TransactionResponse {
	resp := TransactionResponse{
		Success: true,
		Balance: res.Balance.InexactFloat64(),
	}
	if res.Record != nil {
		rec := NewRecordResponse(res.Record)
		resp.Transaction = &rec
	}
	return resp
}

// NewAccountResponse converts an account.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Balance:   a.Balance.InexactFloat64(),
		CreatedAt: a.CreatedAt,
	}
}

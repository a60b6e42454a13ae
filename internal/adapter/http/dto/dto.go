package dto

// LoginRequest is the request body for user login. The password arrives
// pre-digested by the client.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,max=128"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// StartRentalRequest opens a phone-rental session.
type StartRentalRequest struct {
	Tier    string `json:"tier" binding:"required,safe_id"`
	Carrier string `json:"carrier" binding:"omitempty,max=30"`
}

// StartRentalResponse is returned once a number is allocated.
type StartRentalResponse struct {
	SessionID   string `json:"session_id"`
	PhoneNumber string `json:"phone_number"`
	ExpiresAt   string `json:"expires_at"`
	Cost        int64  `json:"cost"`
}

// OtpPollResponse is one get-otp poll outcome.
type OtpPollResponse struct {
	Status   string `json:"status"` // waiting | completed | expired | error
	Otp      string `json:"otp,omitempty"`
	Message  string `json:"message"`
	Refunded bool   `json:"refunded,omitempty"`
}

// VoucherSaveRequest submits cookies to the voucher pipeline. SessionID is a
// client-chosen batch label folded into the per-cookie charge reference.
type VoucherSaveRequest struct {
	SessionID string   `json:"session_id" binding:"required,safe_id,max=64"`
	Cookies   []string `json:"cookies" binding:"required,min=1,max=20,dive,min=10"`
}

// RapidCheckRequest submits one cookie for the shipper lookup.
type RapidCheckRequest struct {
	Cookie string `json:"cookie" binding:"required,min=10"`
}

// BulkCookiesRequest feeds the free account-check and tracking-check
// endpoints.
type BulkCookiesRequest struct {
	Cookies []string `json:"cookies" binding:"required,min=1,max=50,dive,min=10"`
}

// WalletBalanceResponse is the response for the balance query.
type WalletBalanceResponse struct {
	Balance int64 `json:"balance"` // VND
}

// TransactionListResponse wraps a paginated ledger slice.
type TransactionListResponse struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// AdjustBalanceRequest is the operator-initiated signed balance change.
type AdjustBalanceRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required,max=200"`
}

// AdjustBalanceResponse reports the committed adjustment.
type AdjustBalanceResponse struct {
	TransactionID string `json:"transaction_id"`
	BalanceAfter  int64  `json:"balance_after"`
}

// BankDepositRequest is the inbound bank-deposit webhook payload.
type BankDepositRequest struct {
	BankTxnID     string `json:"bank_txn_id" binding:"required,safe_id,max=100"`
	AccountNumber string `json:"account_number" binding:"required,max=30"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Description   string `json:"description" binding:"omitempty,max=200"`
}

// BankDepositResponse acknowledges a credited deposit.
type BankDepositResponse struct {
	TransactionID string `json:"transaction_id"`
	Duplicate     bool   `json:"duplicate"`
}

// ProviderBalanceEntry is one provider's balance in the admin sweep.
type ProviderBalanceEntry struct {
	Provider string `json:"provider"`
	Balance  int64  `json:"balance"`
	Error    string `json:"error,omitempty"`
}

// ProxyHealthResponse summarizes a pool liveness sweep.
type ProxyHealthResponse struct {
	Total   int `json:"total"`
	Healthy int `json:"healthy"`
	Usable  int `json:"usable"`
}

package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	RetryAfter int    `json:"-"` // Seconds; set for rate-limit errors
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a 400 validation error with a custom message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- Authentication & Authorization (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Token không hợp lệ hoặc đã hết hạn", http.StatusUnauthorized)
}

func ErrInvalidAPIKey() *AppError {
	return New("AUTH_002", "API key không hợp lệ", http.StatusUnauthorized)
}

func ErrInvalidCredentials() *AppError {
	return New("AUTH_003", "Tên đăng nhập hoặc mật khẩu không đúng", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_004", "Bạn không có quyền thực hiện thao tác này", http.StatusForbidden)
}

func ErrAccountDisabled() *AppError {
	return New("AUTH_005", "Tài khoản đã bị khóa", http.StatusForbidden)
}

// ---- Wallet & Ledger (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New("PAY_001", "Số dư không đủ, vui lòng nạp thêm tiền", http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Số tiền không hợp lệ", http.StatusBadRequest)
}

func ErrDuplicateReference() *AppError {
	return New("PAY_003", "Giao dịch đã được xử lý trước đó", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("Không tìm thấy %s", entity), http.StatusNotFound)
}

// ---- Rate Limiting & Queueing (RATE) ----

// ErrRateLimited returns a 429 carrying the remaining cool-down in both the
// message and the Retry-After header.
func ErrRateLimited(retryAfterSec int) *AppError {
	e := New("RATE_001",
		fmt.Sprintf("Thao tác quá nhanh, vui lòng thử lại sau %d giây", retryAfterSec),
		http.StatusTooManyRequests)
	e.RetryAfter = retryAfterSec
	return e
}

// ErrQueueFull is returned when the global rental queue has no free slot.
func ErrQueueFull(message string) *AppError {
	e := New("RATE_002", message, http.StatusTooManyRequests)
	e.RetryAfter = 5
	return e
}

// ---- Upstream (UP) ----

func ErrUpstreamUnavailable(err error) *AppError {
	return Wrap("UP_001", "Hệ thống nhà cung cấp đang bận, vui lòng thử lại sau", http.StatusBadGateway, err)
}

// ErrCookieExpired marks a semantic platform failure. Callers must not retry
// the same operation through a different proxy.
func ErrCookieExpired() *AppError {
	return New("UP_002", "Cookie đã hết hạn hoặc không hợp lệ", http.StatusBadRequest)
}

func ErrProviderBalance() *AppError {
	return New("UP_003", "Nhà cung cấp tạm hết số dư, vui lòng thử lại sau", http.StatusServiceUnavailable)
}

func ErrBlockedHost(host string) *AppError {
	return New("UP_004", fmt.Sprintf("Địa chỉ %q không được phép truy cập", host), http.StatusBadRequest)
}

// ---- Rental sessions (RENT) ----

func ErrSessionNotFound() *AppError {
	return New("RENT_001", "Không tìm thấy phiên thuê số", http.StatusNotFound)
}

func ErrSessionExpired() *AppError {
	return New("RENT_002", "Phiên thuê số đã hết hạn", http.StatusBadRequest)
}

func ErrNoNumberAvailable() *AppError {
	return New("RENT_003", "Không lấy được số điện thoại, tiền đã được hoàn lại", http.StatusServiceUnavailable)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Lỗi hệ thống, vui lòng thử lại sau", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Lỗi hệ thống, vui lòng thử lại sau", http.StatusInternalServerError, err)
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == code
}

package wizard

import "github.com/sango-bank/sango_onboard/internal/fingerprint"

// Backend endpoint paths. Relative to the configured origin; every call is a
// POST with the fixed header set from the backend client.
const (
	pathIdentityCheck   = "/api/v1/onboarding/identity/check"
	pathShareContact    = "/api/v1/onboarding/contact/share"
	pathDeviceSession   = "/api/v1/onboarding/device/session"
	pathDeviceVerify    = "/api/v1/onboarding/device/verify"
	pathVerifyCode      = "/api/v1/onboarding/otp/verify"
	pathResendCode      = "/api/v1/onboarding/otp/resend"
	pathVerifyCustomer  = "/api/v1/onboarding/customer/verify"
	pathValidateProduct = "/api/v1/onboarding/product/validate"
	pathComplete        = "/api/v1/onboarding/complete"
)

// The telegram id type varies per endpoint (number on some, string on
// others). That inconsistency is part of the live contract and is encoded
// deliberately in these structs.

type identityCheckRequest struct {
	TelegramID   int64  `json:"telegram_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

type shareContactRequest struct {
	TelegramID  int64  `json:"telegram_id"`
	PhoneNumber string `json:"phone_number"`
}

type deviceSessionRequest struct {
	TelegramID  string `json:"telegram_id"`
	PhoneNumber string `json:"phone_number"`
}

type deviceSessionResponse struct {
	SessionID string `json:"session_id"`
}

type deviceVerifyRequest struct {
	TelegramID string `json:"telegram_id"`
	SessionID  string `json:"session_id"`
	fingerprint.Record
}

type codeVerifyRequest struct {
	TelegramID int64  `json:"telegram_id"`
	SessionID  string `json:"session_id"`
	Code       string `json:"code"`
}

type resendCodeRequest struct {
	TelegramID int64  `json:"telegram_id"`
	SessionID  string `json:"session_id"`
}

type customerVerifyRequest struct {
	TelegramID    string `json:"telegram_id"`
	AccountNumber string `json:"account_number"`
}

type customerVerifyResponse struct {
	CustomerID  string `json:"customer_id"`
	ProductCode string `json:"product_code"`
}

type productValidateRequest struct {
	CustomerID  string `json:"customer_id"`
	ProductCode string `json:"product_code"`
}

type completeRequest struct {
	TelegramID string `json:"telegram_id"`
	CustomerID string `json:"customer_id"`
	SessionID  string `json:"session_id"`
	PIN        string `json:"pin"`
}

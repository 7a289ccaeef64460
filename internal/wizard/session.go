package wizard

import (
	"github.com/sango-bank/sango_onboard/internal/fingerprint"
	"github.com/sango-bank/sango_onboard/internal/telegram"
)

// Session holds everything one registration attempt accumulates. Fields only
// gain values as steps succeed; nothing is cleared until Restart.
type Session struct {
	User     telegram.User
	InitData string

	Phone         string
	Code          string
	AccountNumber string
	PIN           string

	SessionID   string
	CustomerID  string
	ProductCode string

	Device fingerprint.Record
}

package session

import (
	"time"

	"github.com/pquerna/otp/totp"
)

// TwoFAValue derives the 6-digit time-based code for the 2FA step.
func TwoFAValue(totpSecret string) (string, error) {
	code, err := totp.GenerateCode(totpSecret, time.Now())
	if err != nil {
		return "", &TotpError{Err: err}
	}
	return code, nil
}

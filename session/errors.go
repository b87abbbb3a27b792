package session

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Handshake step names carried by AuthError.
const (
	StepConnectLogin  = "connect_login"
	StepLogin         = "login"
	StepTwoFA         = "twofa"
	StepConnectFinish = "connect_finish"
	StepTokenExchange = "token_exchange"
	StepProfile       = "profile"
	StepDeleteSession = "delete_session"
)

// AuthError is returned when the brokerage rejects a handshake step or
// a step response does not have the expected shape.
type AuthError struct {
	Step      string
	Code      int
	ErrorType string
	Message   string
}

func (e *AuthError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("%s: [%d] %s: %s", e.Step, e.Code, e.ErrorType, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

// TotpError is returned when a one-time code cannot be derived from the
// configured TOTP secret.
type TotpError struct {
	Err error
}

func (e *TotpError) Error() string {
	return fmt.Sprintf("failed to generate TOTP value: %v", e.Err)
}

func (e *TotpError) Unwrap() error {
	return e.Err
}

// apiErrorBody is the error envelope Kite endpoints return on failure
type apiErrorBody struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
}

// newAuthError builds an AuthError from a non-200 endpoint response.
func newAuthError(step string, resp *http.Response) *AuthError {
	e := &AuthError{
		Step: step,
		Code: resp.StatusCode,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		e.Message = resp.Status
		return e
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		e.Message = resp.Status
		return e
	}

	e.ErrorType = parsed.ErrorType
	e.Message = parsed.Message
	return e
}

// shapeError reports an unexpected response shape (bad status, missing
// redirect, missing query parameter) for a handshake step.
func shapeError(step, format string, args ...interface{}) *AuthError {
	return &AuthError{
		Step:    step,
		Message: fmt.Sprintf(format, args...),
	}
}

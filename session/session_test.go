package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const (
	testUserID       = "AB1234"
	testPassword     = "secret-password"
	testTOTPSecret   = "JBSWY3DPEHPK3PXP"
	testAPIKey       = "test_api_key"
	testAPISecret    = "test_api_secret"
	testRequestToken = "req_token_123"
	testAccessToken  = "access_token_456"
	testSessID       = "sess_789"
	testEnctoken     = "enctoken_abc"
)

// fakeKite fakes the handshake endpoints. It tracks whether 2FA completed so
// connect/finish can refuse unauthenticated sessions like the real OMS does.
type fakeKite struct {
	twoFADone bool

	finishLocation string // overrides the default finish redirect when set
	connectStatus  int    // overrides the 302 on connect/login when set
}

func (f *fakeKite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/connect/login", f.connectLogin)
	mux.HandleFunc("/api/login", f.login)
	mux.HandleFunc("/api/twofa", f.twoFA)
	mux.HandleFunc("/connect/finish", f.connectFinish)
	mux.HandleFunc("/session/token", f.sessionToken)
	mux.HandleFunc("/oms/user/profile", f.omsProfile)
	mux.HandleFunc("/user/profile", f.apiProfile)
	return mux
}

func (f *fakeKite) connectLogin(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("api_key") != testAPIKey {
		writeKiteError(w, http.StatusForbidden, "InputException", "invalid api_key")
		return
	}
	if f.connectStatus != 0 {
		w.WriteHeader(f.connectStatus)
		return
	}
	w.Header().Set("Location", "https://kite.example.com/login?sess_id="+testSessID)
	w.WriteHeader(http.StatusFound)
}

func (f *fakeKite) login(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	if r.PostForm.Get("user_id") != testUserID || r.PostForm.Get("password") != testPassword {
		writeKiteError(w, http.StatusForbidden, "UserException", "Invalid username or password")
		return
	}
	fmt.Fprint(w, `{
		"status": "success",
		"data": {
			"user_id": "`+testUserID+`",
			"request_id": "req-id-1",
			"twofa_type": "totp",
			"profile": {"user_name": "Test User", "user_shortname": "Test", "avatar_url": ""}
		}
	}`)
}

func (f *fakeKite) twoFA(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	if r.PostForm.Get("request_id") != "req-id-1" {
		writeKiteError(w, http.StatusForbidden, "InputException", "unknown request id")
		return
	}
	if len(r.PostForm.Get("twofa_value")) != 6 {
		writeKiteError(w, http.StatusForbidden, "TwoFAException", "Invalid TOTP")
		return
	}
	f.twoFADone = true
	http.SetCookie(w, &http.Cookie{Name: "kf_session", Value: "kf_1", Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "enctoken", Value: testEnctoken, Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "public_token", Value: "pub_1", Path: "/"})
	fmt.Fprint(w, `{"status": "success", "data": {}}`)
}

func (f *fakeKite) connectFinish(w http.ResponseWriter, r *http.Request) {
	if !f.twoFADone {
		writeKiteError(w, http.StatusForbidden, "TokenException", "not logged in")
		return
	}
	if r.URL.Query().Get("sess_id") != testSessID {
		writeKiteError(w, http.StatusForbidden, "InputException", "unknown session")
		return
	}
	loc := f.finishLocation
	if loc == "" {
		loc = "https://example.com/cb?action=login&status=success&request_token=" + testRequestToken
	}
	w.Header().Set("Location", loc)
	w.WriteHeader(http.StatusFound)
}

func (f *fakeKite) sessionToken(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		if r.URL.Query().Get("access_token") != testAccessToken {
			writeKiteError(w, http.StatusForbidden, "TokenException", "invalid token")
			return
		}
		fmt.Fprint(w, `{"status": "success", "data": true}`)
		return
	}

	r.ParseForm()
	sum := sha256.Sum256([]byte(testAPIKey + testRequestToken + testAPISecret))
	if r.PostForm.Get("checksum") != hex.EncodeToString(sum[:]) {
		writeKiteError(w, http.StatusForbidden, "TokenException", "checksum mismatch")
		return
	}
	if r.PostForm.Get("request_token") != testRequestToken {
		writeKiteError(w, http.StatusForbidden, "TokenException", "invalid request token")
		return
	}
	fmt.Fprint(w, `{
		"status": "success",
		"data": {
			"user_type": "individual",
			"email": "test@example.com",
			"user_name": "Test User",
			"user_shortname": "Test",
			"broker": "ZERODHA",
			"exchanges": ["NSE", "NFO"],
			"products": ["CNC", "MIS"],
			"order_types": ["MARKET", "LIMIT"],
			"user_id": "`+testUserID+`",
			"api_key": "`+testAPIKey+`",
			"access_token": "`+testAccessToken+`",
			"public_token": "pub_1",
			"refresh_token": "",
			"enctoken": "`+testEnctoken+`",
			"login_time": "2024-01-25 09:15:00",
			"meta": {"demat_consent": "consent"}
		}
	}`)
}

func (f *fakeKite) omsProfile(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "enctoken "+testEnctoken {
		writeKiteError(w, http.StatusForbidden, "TokenException", "invalid enctoken")
		return
	}
	fmt.Fprint(w, `{
		"status": "success",
		"data": {
			"user_type": "individual",
			"email": "test@example.com",
			"user_name": "Test User",
			"user_shortname": "Test",
			"broker": "ZERODHA",
			"exchanges": ["NSE"],
			"products": ["CNC"],
			"order_types": ["MARKET"],
			"user_id": "`+testUserID+`",
			"meta": {}
		}
	}`)
}

func (f *fakeKite) apiProfile(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "token "+testAPIKey+":"+testAccessToken {
		writeKiteError(w, http.StatusForbidden, "TokenException", "invalid token")
		return
	}
	fmt.Fprint(w, `{"status": "success", "data": {}}`)
}

func writeKiteError(w http.ResponseWriter, code int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status": "error", "message": %q, "error_type": %q}`, message, errorType)
}

func newTestGenerator(t *testing.T, fake *fakeKite) *Generator {
	t.Helper()
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	return NewGenerator(WithEndpoints(Endpoints{
		Login:         ts.URL + "/api/login",
		TwoFA:         ts.URL + "/api/twofa",
		ConnectLogin:  ts.URL + "/connect/login",
		ConnectFinish: ts.URL + "/connect/finish",
		SessionToken:  ts.URL + "/session/token",
		OMSProfile:    ts.URL + "/oms/user/profile",
		APIProfile:    ts.URL + "/user/profile",
	}))
}

func apiUser() User {
	return User{
		UserID:     testUserID,
		Password:   testPassword,
		TOTPSecret: testTOTPSecret,
		APIKey:     testAPIKey,
		APISecret:  testAPISecret,
	}
}

func TestGenerateSession_APIFlow(t *testing.T) {
	g := newTestGenerator(t, &fakeKite{})

	sess, err := g.GenerateSession(context.Background(), apiUser())
	if err != nil {
		t.Fatalf("GenerateSession failed: %v", err)
	}

	if sess.APIKey != testAPIKey {
		t.Errorf("APIKey = %q, want %q", sess.APIKey, testAPIKey)
	}
	if sess.AccessToken != testAccessToken {
		t.Errorf("AccessToken = %q, want %q", sess.AccessToken, testAccessToken)
	}
	if sess.UserID != testUserID {
		t.Errorf("UserID = %q, want %q", sess.UserID, testUserID)
	}
	if sess.KFSession != "kf_1" {
		t.Errorf("KFSession = %q, want %q", sess.KFSession, "kf_1")
	}
	if len(sess.Exchanges) != 2 {
		t.Errorf("Exchanges = %v, want 2 entries", sess.Exchanges)
	}
}

func TestGenerateSession_InvalidPassword(t *testing.T) {
	g := newTestGenerator(t, &fakeKite{})

	user := apiUser()
	user.Password = "wrong"

	_, err := g.GenerateSession(context.Background(), user)
	if err == nil {
		t.Fatal("expected an error for invalid password")
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error type = %T, want *AuthError: %v", err, err)
	}
	if authErr.Step != StepLogin {
		t.Errorf("Step = %q, want %q", authErr.Step, StepLogin)
	}
	if authErr.Code != http.StatusForbidden {
		t.Errorf("Code = %d, want %d", authErr.Code, http.StatusForbidden)
	}
	if authErr.ErrorType != "UserException" {
		t.Errorf("ErrorType = %q, want %q", authErr.ErrorType, "UserException")
	}
}

func TestGenerateSession_OMSFlow(t *testing.T) {
	g := newTestGenerator(t, &fakeKite{})

	user := apiUser()
	user.APIKey = ""
	user.APISecret = ""

	sess, err := g.GenerateSession(context.Background(), user)
	if err != nil {
		t.Fatalf("GenerateSession failed: %v", err)
	}

	if sess.Enctoken != testEnctoken {
		t.Errorf("Enctoken = %q, want %q", sess.Enctoken, testEnctoken)
	}
	if sess.PublicToken != "pub_1" {
		t.Errorf("PublicToken = %q, want %q", sess.PublicToken, "pub_1")
	}
	if sess.AccessToken != "" {
		t.Errorf("AccessToken = %q, want empty for OMS session", sess.AccessToken)
	}
	if sess.Broker != "ZERODHA" {
		t.Errorf("Broker = %q, want %q", sess.Broker, "ZERODHA")
	}
	if sess.LoginTime == "" {
		t.Error("LoginTime should be set")
	}
}

func TestGenerateSession_MalformedRedirect(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeKite
		wantStep string
	}{
		{
			name:     "connect login not a redirect",
			fake:     &fakeKite{connectStatus: http.StatusOK},
			wantStep: StepConnectLogin,
		},
		{
			name:     "finish redirect missing request token",
			fake:     &fakeKite{finishLocation: "https://example.com/cb?status=success"},
			wantStep: StepConnectFinish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, tt.fake)

			_, err := g.GenerateSession(context.Background(), apiUser())
			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("error type = %T, want *AuthError: %v", err, err)
			}
			if authErr.Step != tt.wantStep {
				t.Errorf("Step = %q, want %q", authErr.Step, tt.wantStep)
			}
		})
	}
}

func TestGenerateSession_BadTOTPSecret(t *testing.T) {
	g := newTestGenerator(t, &fakeKite{})

	user := apiUser()
	user.TOTPSecret = "not a base32 secret!!!"

	_, err := g.GenerateSession(context.Background(), user)
	var totpErr *TotpError
	if !errors.As(err, &totpErr) {
		t.Fatalf("error type = %T, want *TotpError: %v", err, err)
	}
}

func TestTwoFAValue(t *testing.T) {
	code, err := TwoFAValue(testTOTPSecret)
	if err != nil {
		t.Fatalf("TwoFAValue failed: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}
}

func TestDeleteSession(t *testing.T) {
	g := newTestGenerator(t, &fakeKite{})

	if err := g.DeleteSession(context.Background(), testAPIKey, testAccessToken); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	err := g.DeleteSession(context.Background(), testAPIKey, "stale-token")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error type = %T, want *AuthError: %v", err, err)
	}
	if authErr.Step != StepDeleteSession {
		t.Errorf("Step = %q, want %q", authErr.Step, StepDeleteSession)
	}
}

func TestIsAPISessionValid(t *testing.T) {
	g := newTestGenerator(t, &fakeKite{})

	if !g.IsAPISessionValid(context.Background(), testAPIKey, testAccessToken) {
		t.Error("expected session to be valid")
	}
	if g.IsAPISessionValid(context.Background(), testAPIKey, "stale-token") {
		t.Error("expected stale session to be invalid")
	}
}

func TestGenerateChecksum(t *testing.T) {
	sum := sha256.Sum256([]byte("keytokensecret"))
	want := hex.EncodeToString(sum[:])
	if got := generateChecksum("key", "token", "secret"); got != want {
		t.Errorf("generateChecksum = %q, want %q", got, want)
	}
}

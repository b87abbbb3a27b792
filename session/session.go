package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"kiteclient/logger"
)

const kiteVersion = "3"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36"

// Endpoints holds the brokerage URLs consumed by the handshake.
type Endpoints struct {
	Login         string
	TwoFA         string
	ConnectLogin  string
	ConnectFinish string
	SessionToken  string
	OMSProfile    string
	APIProfile    string
}

// DefaultEndpoints returns the production Kite endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:         "https://kite.zerodha.com/api/login",
		TwoFA:         "https://kite.zerodha.com/api/twofa",
		ConnectLogin:  "https://kite.zerodha.com/connect/login",
		ConnectFinish: "https://kite.zerodha.com/connect/finish",
		SessionToken:  "https://api.kite.trade/session/token",
		OMSProfile:    "https://kite.zerodha.com/oms/user/profile",
		APIProfile:    "https://api.kite.trade/user/profile",
	}
}

// Generator performs the multi-step login handshake. One Generator owns one
// cookie-jarred HTTP client; the OMS cookies collected during the 2FA step are
// what make the connect/finish redirect resolve.
type Generator struct {
	client    *http.Client
	endpoints Endpoints
	log       *logger.Logger
}

type Option func(*Generator)

// WithEndpoints overrides the brokerage endpoint URLs.
func WithEndpoints(e Endpoints) Option {
	return func(g *Generator) {
		g.endpoints = e
	}
}

// WithTimeout overrides the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.client.Timeout = d
	}
}

// NewGenerator returns a Generator ready to produce sessions.
func NewGenerator(opts ...Option) *Generator {
	// Redirects are never followed; the handshake reads Location headers
	// itself and a stray redirect would leak the request token.
	jar, _ := cookiejar.New(nil)
	g := &Generator{
		client: &http.Client{
			Jar:     jar,
			Timeout: 7 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		endpoints: DefaultEndpoints(),
		log:       logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateSession runs the full login handshake for the given user. With an
// API key and secret present it produces an API session (access token);
// otherwise it produces an OMS session (enctoken).
func (g *Generator) GenerateSession(ctx context.Context, user User) (*UserSession, error) {
	if user.APIKey != "" && user.APISecret != "" {
		return g.generateAPISession(ctx, user)
	}
	return g.generateOMSSession(ctx, user)
}

// generateAPISession walks the connect flow: session id, OMS login, finish
// redirect, checksum, token exchange.
func (g *Generator) generateAPISession(ctx context.Context, user User) (*UserSession, error) {
	// Step 1: connect login, expect a 302 carrying sess_id
	connectURL := fmt.Sprintf("%s?v=%s&api_key=%s", g.endpoints.ConnectLogin, kiteVersion, url.QueryEscape(user.APIKey))
	resp, err := g.get(ctx, connectURL, "")
	if err != nil {
		return nil, fmt.Errorf("connect login request failed: %w", err)
	}
	sessID, aerr := redirectParam(StepConnectLogin, resp, "sess_id")
	resp.Body.Close()
	if aerr != nil {
		return nil, aerr
	}

	// Step 2: OMS login + 2FA on the same cookie jar
	if _, _, err := g.loginAndTwoFA(ctx, user); err != nil {
		return nil, err
	}

	// Step 3: connect finish, expect a 302 carrying request_token
	finishURL := fmt.Sprintf("%s?v=%s&api_key=%s&sess_id=%s",
		g.endpoints.ConnectFinish, kiteVersion, url.QueryEscape(user.APIKey), url.QueryEscape(sessID))
	resp, err = g.get(ctx, finishURL, "")
	if err != nil {
		return nil, fmt.Errorf("connect finish request failed: %w", err)
	}
	requestToken, aerr := redirectParam(StepConnectFinish, resp, "request_token")
	resp.Body.Close()
	if aerr != nil {
		return nil, aerr
	}

	g.log.Info("Obtained request token", map[string]interface{}{
		"token_length": len(requestToken),
	})

	// Step 4: checksum = sha256(api_key + request_token + api_secret)
	checksum := generateChecksum(user.APIKey, requestToken, user.APISecret)

	// Step 5: exchange request token + checksum for the access token
	form := url.Values{}
	form.Set("api_key", user.APIKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", checksum)

	resp, err = g.postForm(ctx, g.endpoints.SessionToken, form)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newAuthError(StepTokenExchange, resp)
	}

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, shapeError(StepTokenExchange, "failed to parse token response: %v", err)
	}

	sess := result.Data
	if sess.AccessToken == "" {
		return nil, shapeError(StepTokenExchange, "no access token in session response")
	}
	sess.KFSession = g.cookieValue(g.endpoints.Login, "kf_session")

	g.log.Info("Successfully generated API session", map[string]interface{}{
		"user_id":      sess.UserID,
		"token_length": len(sess.AccessToken),
	})

	return &sess, nil
}

// generateOMSSession logs in without an API key and fills the session from
// the OMS cookies and the user profile.
func (g *Generator) generateOMSSession(ctx context.Context, user User) (*UserSession, error) {
	login, cookies, err := g.loginAndTwoFA(ctx, user)
	if err != nil {
		return nil, err
	}

	sess := &UserSession{
		UserID:        user.UserID,
		UserName:      login.Data.Profile.UserName,
		UserShortname: login.Data.Profile.UserShortname,
		AvatarURL:     login.Data.Profile.AvatarURL,
		KFSession:     cookies.kfSession,
		Enctoken:      cookies.enctoken,
		PublicToken:   cookies.publicToken,
		LoginTime:     time.Now().Format("2006-01-02 15:04:05"),
	}

	profile, err := g.omsProfile(ctx, cookies.enctoken)
	if err != nil {
		return nil, err
	}
	sess.UserType = profile.Data.UserType
	sess.Email = profile.Data.Email
	sess.Broker = profile.Data.Broker
	sess.Exchanges = profile.Data.Exchanges
	sess.Products = profile.Data.Products
	sess.OrderTypes = profile.Data.OrderTypes
	sess.Meta = profile.Data.Meta
	if profile.Data.UserName != "" {
		sess.UserName = profile.Data.UserName
	}
	if profile.Data.UserShortname != "" {
		sess.UserShortname = profile.Data.UserShortname
	}

	g.log.Info("Successfully generated OMS session", map[string]interface{}{
		"user_id":         sess.UserID,
		"enctoken_length": len(sess.Enctoken),
	})

	return sess, nil
}

type omsCookies struct {
	kfSession   string
	enctoken    string
	publicToken string
}

// loginAndTwoFA performs the credential and TOTP steps and returns the login
// payload plus the session cookies the OMS handed back.
func (g *Generator) loginAndTwoFA(ctx context.Context, user User) (*loginResponse, *omsCookies, error) {
	// Step 1: user id + password
	loginData := url.Values{}
	loginData.Set("user_id", user.UserID)
	loginData.Set("password", user.Password)
	loginData.Set("type", "user_id")

	g.log.Info("Attempting login", map[string]interface{}{
		"user_id": user.UserID,
	})

	resp, err := g.postForm(ctx, g.endpoints.Login, loginData)
	if err != nil {
		return nil, nil, fmt.Errorf("login request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, nil, newAuthError(StepLogin, resp)
	}

	var login loginResponse
	err = json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()
	if err != nil {
		return nil, nil, shapeError(StepLogin, "failed to parse login response: %v", err)
	}
	if !login.IsSuccess() || login.Data.RequestID == "" {
		return nil, nil, shapeError(StepLogin, "no request id in login response")
	}

	// Step 2: TOTP value
	twoFAValue, err := TwoFAValue(user.TOTPSecret)
	if err != nil {
		return nil, nil, err
	}

	twoFAType := login.Data.TwoFAType
	if twoFAType == "" {
		twoFAType = "totp"
	}

	twoFAData := url.Values{}
	twoFAData.Set("user_id", user.UserID)
	twoFAData.Set("request_id", login.Data.RequestID)
	twoFAData.Set("twofa_value", twoFAValue)
	twoFAData.Set("twofa_type", twoFAType)

	g.log.Info("Attempting 2FA", map[string]interface{}{
		"request_id": login.Data.RequestID,
	})

	resp, err = g.postForm(ctx, g.endpoints.TwoFA, twoFAData)
	if err != nil {
		return nil, nil, fmt.Errorf("2FA request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, newAuthError(StepTwoFA, resp)
	}

	cookies := &omsCookies{
		kfSession:   g.cookieValue(g.endpoints.TwoFA, "kf_session"),
		enctoken:    g.cookieValue(g.endpoints.TwoFA, "enctoken"),
		publicToken: g.cookieValue(g.endpoints.TwoFA, "public_token"),
	}

	return &login, cookies, nil
}

func (g *Generator) omsProfile(ctx context.Context, enctoken string) (*profileResponse, error) {
	resp, err := g.get(ctx, g.endpoints.OMSProfile, "enctoken "+enctoken)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newAuthError(StepProfile, resp)
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, shapeError(StepProfile, "failed to parse profile response: %v", err)
	}
	return &profile, nil
}

// DeleteSession invalidates an API session's access token.
func (g *Generator) DeleteSession(ctx context.Context, apiKey, accessToken string) error {
	u := fmt.Sprintf("%s?api_key=%s&access_token=%s",
		g.endpoints.SessionToken, url.QueryEscape(apiKey), url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete session request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return newAuthError(StepDeleteSession, resp)
	}

	g.log.Info("Successfully deleted session", nil)
	return nil
}

// IsAPISessionValid reports whether an access token still authorizes
// API calls.
func (g *Generator) IsAPISessionValid(ctx context.Context, apiKey, accessToken string) bool {
	resp, err := g.get(ctx, g.endpoints.APIProfile, "token "+apiKey+":"+accessToken)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// IsOMSSessionValid reports whether an enctoken still authorizes OMS calls.
func (g *Generator) IsOMSSessionValid(ctx context.Context, enctoken string) bool {
	resp, err := g.get(ctx, g.endpoints.OMSProfile, "enctoken "+enctoken)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (g *Generator) postForm(ctx context.Context, u string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return g.client.Do(req)
}

func (g *Generator) get(ctx context.Context, u, authorization string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	g.setHeaders(req)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return g.client.Do(req)
}

func (g *Generator) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Kite-Version", kiteVersion)
}

// cookieValue returns the named cookie stored for the given endpoint's host.
func (g *Generator) cookieValue(endpoint, name string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	for _, c := range g.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// redirectParam extracts a query parameter from a 302 response's Location.
func redirectParam(step string, resp *http.Response, key string) (string, *AuthError) {
	if resp.StatusCode != http.StatusFound {
		return "", shapeError(step, "expected redirect, got [%d]", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", shapeError(step, "location header not found in response")
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", shapeError(step, "malformed location header: %v", err)
	}
	value := u.Query().Get(key)
	if value == "" {
		return "", shapeError(step, "%s not found in redirect location", key)
	}
	return value, nil
}

// generateChecksum hashes api_key + request_token + api_secret for the
// token exchange step.
func generateChecksum(apiKey, requestToken, apiSecret string) string {
	h := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(h[:])
}

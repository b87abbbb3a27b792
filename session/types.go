package session

// User holds the credentials consumed by one GenerateSession call.
// APIKey and APISecret are optional; without them only an OMS session
// (enctoken based) can be generated.
type User struct {
	UserID     string
	Password   string
	TOTPSecret string
	APIKey     string
	APISecret  string
}

// UserSession is the output of a successful login handshake.
type UserSession struct {
	UserType      string                 `json:"user_type"`
	Email         string                 `json:"email"`
	UserName      string                 `json:"user_name"`
	UserShortname string                 `json:"user_shortname"`
	Broker        string                 `json:"broker"`
	Exchanges     []string               `json:"exchanges"`
	Products      []string               `json:"products"`
	OrderTypes    []string               `json:"order_types"`
	AvatarURL     string                 `json:"avatar_url"`
	UserID        string                 `json:"user_id"`
	APIKey        string                 `json:"api_key"`
	AccessToken   string                 `json:"access_token"`
	PublicToken   string                 `json:"public_token"`
	RefreshToken  string                 `json:"refresh_token"`
	Enctoken      string                 `json:"enctoken"`
	LoginTime     string                 `json:"login_time"`
	Meta          map[string]interface{} `json:"meta"`
	KFSession     string                 `json:"kf_session"`
}

// loginResponse represents the login API response
type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		UserID     string   `json:"user_id"`
		RequestID  string   `json:"request_id"`
		TwoFAType  string   `json:"twofa_type"`
		TwoFATypes []string `json:"twofa_types"`
		Profile    struct {
			UserName      string `json:"user_name"`
			UserShortname string `json:"user_shortname"`
			AvatarURL     string `json:"avatar_url"`
		} `json:"profile"`
	} `json:"data"`
}

func (r *loginResponse) IsSuccess() bool {
	return r.Status == "success"
}

// profileResponse represents the OMS user profile response
type profileResponse struct {
	Status string `json:"status"`
	Data   struct {
		UserType      string                 `json:"user_type"`
		Email         string                 `json:"email"`
		UserName      string                 `json:"user_name"`
		UserShortname string                 `json:"user_shortname"`
		Broker        string                 `json:"broker"`
		Exchanges     []string               `json:"exchanges"`
		Products      []string               `json:"products"`
		OrderTypes    []string               `json:"order_types"`
		AvatarURL     string                 `json:"avatar_url"`
		UserID        string                 `json:"user_id"`
		Meta          map[string]interface{} `json:"meta"`
	} `json:"data"`
}

// tokenResponse represents the session token exchange response
type tokenResponse struct {
	Status string      `json:"status"`
	Data   UserSession `json:"data"`
}

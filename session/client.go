package session

import (
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// KiteClient builds an API client authorized with a generated session, for
// downstream brokerage calls.
func KiteClient(apiKey, accessToken string) *kiteconnect.Client {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return kc
}

// Client returns the authorized API client for this session.
func (s *UserSession) Client() *kiteconnect.Client {
	return KiteClient(s.APIKey, s.AccessToken)
}

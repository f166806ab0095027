package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"golang.org/x/oauth2"
	ggoogle "golang.org/x/oauth2/google"
)

// GoogleOAuth builds consent URLs for clients doing the server-side code
// flow. The token verification itself lives in Verifier; this only exists so
// web clients without the Firebase SDK can still start a sign-in.
type GoogleOAuth struct {
	cfg      *oauth2.Config
	stateKey []byte
}

func NewGoogle(clientID, clientSecret, redirectURI, stateSecret string) *GoogleOAuth {
	return &GoogleOAuth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     ggoogle.Endpoint,
		},
		stateKey: []byte(stateSecret),
	}
}

func (g *GoogleOAuth) Configured() bool { return g != nil && g.cfg.ClientID != "" }

// MakeState signs raw with an HMAC so the callback can prove the state came
// from us (CSRF protection).
func (g *GoogleOAuth) MakeState(raw string) string {
	mac := hmac.New(sha256.New, g.stateKey)
	mac.Write([]byte(raw))
	return raw + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (g *GoogleOAuth) VerifyState(got string) bool {
	i := strings.LastIndexByte(got, '.')
	if i < 0 {
		return false
	}
	sig, err := base64.RawURLEncoding.DecodeString(got[i+1:])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, g.stateKey)
	mac.Write([]byte(got[:i]))
	return hmac.Equal(mac.Sum(nil), sig)
}

func (g *GoogleOAuth) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

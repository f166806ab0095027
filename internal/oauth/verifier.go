package oauth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/savitara/auth-service/internal/apperr"
)

// Google publishes the signing keys for Firebase ID tokens in two places:
// a JWKS document and, for Firebase specifically, an X.509 certificate map
// keyed by the same kid. We try the JWKS first and fall back to the certs.
const (
	GoogleCertsURL   = "https://www.googleapis.com/oauth2/v3/certs"
	FirebaseCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"
)

const issuerPrefix = "https://securetoken.google.com/"

type GoogleUser struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Verifier checks Firebase-issued ID tokens against Google's rotating public
// keys. Safe for concurrent use; the key cache is shared across requests.
type Verifier struct {
	ProjectID string

	jwksURL  string
	certsURL string
	ttl      time.Duration

	mu    sync.RWMutex
	keys  map[string]*rsa.PublicKey
	expAt time.Time

	http *http.Client
}

// NewVerifier wires the production Google endpoints.
func NewVerifier(projectID string) *Verifier {
	return NewVerifierWithEndpoints(projectID, GoogleCertsURL, FirebaseCertsURL, time.Hour)
}

func NewVerifierWithEndpoints(projectID, jwksURL, certsURL string, ttl time.Duration) *Verifier {
	return &Verifier{
		ProjectID: projectID,
		jwksURL:   jwksURL,
		certsURL:  certsURL,
		ttl:       ttl,
		keys:      make(map[string]*rsa.PublicKey),
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

type firebaseClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	UserID        string `json:"user_id"`
	jwt.RegisteredClaims
}

// Verify validates signature (RS256 only), audience, issuer and expiry, and
// requires the email_verified claim. Every failure surfaces as an apperr so
// the handler layer never has to interpret jwt internals.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*GoogleUser, error) {
	parser := jwt.NewParser()
	tok, parts, err := parser.ParseUnverified(idToken, jwt.MapClaims{})
	if err != nil || len(parts) != 3 {
		return nil, apperr.ErrGoogleVerify.WithCause(err).WithDetails(map[string]any{"reason": "invalid token format"})
	}
	kid, _ := tok.Header["kid"].(string)
	if kid == "" {
		return nil, apperr.ErrGoogleVerify.WithDetails(map[string]any{"reason": "token header has no kid"})
	}

	pub, err := v.signingKey(ctx, kid)
	if err != nil {
		return nil, apperr.ErrGoogleVerify.WithCause(err).WithDetails(map[string]any{"kid": kid})
	}

	claims := &firebaseClaims{}
	_, err = jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		return pub, nil
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.ProjectID),
		jwt.WithIssuer(issuerPrefix+v.ProjectID),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperr.ErrTokenExpired.WithCause(err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return nil, apperr.ErrGoogleVerify.WithCause(err).WithDetails(map[string]any{"reason": "audience mismatch"})
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return nil, apperr.ErrGoogleVerify.WithCause(err).WithDetails(map[string]any{"reason": "issuer mismatch"})
	default:
		return nil, apperr.ErrGoogleVerify.WithCause(err)
	}

	if !claims.EmailVerified {
		return nil, apperr.ErrEmailNotVerified.WithDetails(map[string]any{"email": claims.Email})
	}

	sub := claims.UserID
	if sub == "" {
		sub = claims.Subject
	}
	if claims.Email == "" || sub == "" {
		return nil, apperr.ErrGoogleVerify.WithDetails(map[string]any{"reason": "missing email or subject"})
	}

	return &GoogleUser{
		Sub:           sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

// signingKey resolves kid from the cache, then the JWKS endpoint, then the
// X.509 certificate endpoint. One fetch attempt per source, no retries.
func (v *Verifier) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	if pk, ok := v.keys[kid]; ok && time.Now().Before(v.expAt) {
		v.mu.RUnlock()
		return pk, nil
	}
	v.mu.RUnlock()

	jwksErr := v.refreshJWKS(ctx)
	if jwksErr == nil {
		v.mu.RLock()
		pk, ok := v.keys[kid]
		v.mu.RUnlock()
		if ok {
			return pk, nil
		}
	}

	pk, certErr := v.fetchCert(ctx, kid)
	if certErr != nil {
		if jwksErr != nil {
			return nil, fmt.Errorf("jwks: %v; certs: %w", jwksErr, certErr)
		}
		return nil, fmt.Errorf("signing key not found: %w", certErr)
	}

	v.mu.Lock()
	v.keys[kid] = pk
	v.mu.Unlock()
	return pk, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDoc struct {
	Keys []jwk `json:"keys"`
}

func (v *Verifier) refreshJWKS(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var doc jwksDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return err
	}
	tmp := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pk, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		tmp[k.Kid] = pk
	}
	v.mu.Lock()
	v.keys = tmp
	v.expAt = time.Now().Add(v.ttl)
	v.mu.Unlock()
	return nil
}

// fetchCert pulls the Firebase X.509 certificate map and extracts the public
// key for kid from the matching certificate.
func (v *Verifier) fetchCert(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cert endpoint returned %d", resp.StatusCode)
	}

	certs := map[string]string{}
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return nil, err
	}
	pemStr, ok := certs[kid]
	if !ok {
		return nil, fmt.Errorf("kid %s not in certificate set", kid)
	}
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("invalid certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	pk, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate key is not RSA")
	}
	return pk, nil
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil || len(eb) == 0 {
		return nil, errors.New("bad exponent")
	}
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

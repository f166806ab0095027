package oauth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/savitara/auth-service/internal/apperr"
	"github.com/savitara/auth-service/internal/oauth"
)

const testProject = "savitara-test"

type fakeGoogle struct {
	key  *rsa.PrivateKey
	kid  string
	jwks *httptest.Server
	cert *httptest.Server

	// when true the JWKS endpoint omits the key so only the cert
	// endpoint can resolve the kid
	jwksEmpty bool
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	fg := &fakeGoogle{key: key, kid: "kid-1"}

	fg.jwks = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys := []map[string]string{}
		if !fg.jwksEmpty {
			keys = append(keys, map[string]string{
				"kty": "RSA",
				"kid": fg.kid,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
	}))

	certPEM := selfSignedPEM(t, key)
	fg.cert = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{fg.kid: certPEM})
	}))

	t.Cleanup(func() {
		fg.jwks.Close()
		fg.cert.Close()
	})
	return fg
}

func selfSignedPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.google.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func (fg *fakeGoogle) verifier() *oauth.Verifier {
	return oauth.NewVerifierWithEndpoints(testProject, fg.jwks.URL, fg.cert.URL, time.Minute)
}

func (fg *fakeGoogle) token(t *testing.T, mutate func(jwt.MapClaims)) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":            "https://securetoken.google.com/" + testProject,
		"aud":            testProject,
		"sub":            "firebase-uid-1",
		"user_id":        "firebase-uid-1",
		"email":          "a@x.com",
		"email_verified": true,
		"name":           "A",
		"picture":        "https://img.example/a.png",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = fg.kid
	s, err := tok.SignedString(fg.key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestVerify_ViaJWKS(t *testing.T) {
	fg := newFakeGoogle(t)
	u, err := fg.verifier().Verify(context.Background(), fg.token(t, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if u.Email != "a@x.com" || u.Sub != "firebase-uid-1" || !u.EmailVerified {
		t.Fatalf("user mismatch: %#v", u)
	}
}

func TestVerify_FallsBackToCerts(t *testing.T) {
	fg := newFakeGoogle(t)
	fg.jwksEmpty = true
	u, err := fg.verifier().Verify(context.Background(), fg.token(t, nil))
	if err != nil {
		t.Fatalf("verify via cert fallback: %v", err)
	}
	if u.Sub != "firebase-uid-1" {
		t.Fatalf("user mismatch: %#v", u)
	}
}

func TestVerify_UnverifiedEmailRejected(t *testing.T) {
	fg := newFakeGoogle(t)
	tok := fg.token(t, func(c jwt.MapClaims) { c["email_verified"] = false })
	_, err := fg.verifier().Verify(context.Background(), tok)
	ae := apperr.As(err)
	if ae == nil || ae.Code != apperr.ErrEmailNotVerified.Code {
		t.Fatalf("want ErrEmailNotVerified, got %v", err)
	}
}

func TestVerify_AudienceMismatch(t *testing.T) {
	fg := newFakeGoogle(t)
	tok := fg.token(t, func(c jwt.MapClaims) { c["aud"] = "other-project" })
	if _, err := fg.verifier().Verify(context.Background(), tok); err == nil {
		t.Fatal("audience mismatch accepted")
	}
}

func TestVerify_IssuerMismatch(t *testing.T) {
	fg := newFakeGoogle(t)
	tok := fg.token(t, func(c jwt.MapClaims) { c["iss"] = "https://accounts.google.com" })
	if _, err := fg.verifier().Verify(context.Background(), tok); err == nil {
		t.Fatal("issuer mismatch accepted")
	}
}

func TestVerify_Expired(t *testing.T) {
	fg := newFakeGoogle(t)
	tok := fg.token(t, func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() })
	_, err := fg.verifier().Verify(context.Background(), tok)
	ae := apperr.As(err)
	if ae == nil || ae.Code != apperr.ErrTokenExpired.Code {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestVerify_UnknownKidBothSources(t *testing.T) {
	fg := newFakeGoogle(t)
	fg.jwksEmpty = true

	// signed with a kid neither endpoint serves
	claims := jwt.MapClaims{
		"iss": "https://securetoken.google.com/" + testProject,
		"aud": testProject, "sub": "s", "email": "a@x.com",
		"email_verified": true, "exp": time.Now().Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "kid-unknown"
	s, err := tok.SignedString(fg.key)
	if err != nil {
		t.Fatal(err)
	}

	_, err = fg.verifier().Verify(context.Background(), s)
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected apperr for unknown kid, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	fg := newFakeGoogle(t)
	if _, err := fg.verifier().Verify(context.Background(), "not-a-jwt"); err == nil {
		t.Fatal("garbage accepted")
	}
}

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
)

const defTokenTTL = time.Hour

type tokenClaims struct {
	NodeID string `json:"node_id"`
	Iat    int64  `json:"iat"`
}

// TokenAuthenticator signs {nodeId, iat} with HMAC-SHA256. Tokens are
// time-boxed by TTL.
type TokenAuthenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenAuthenticator(secret []byte, ttl time.Duration) *TokenAuthenticator {
	if ttl <= 0 {
		ttl = defTokenTTL
	}

	return &TokenAuthenticator{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (t *TokenAuthenticator) Mint(nodeID string) (Credential, error) {
	if nodeID == "" {
		return Credential{}, errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("empty node id"))
	}

	claims, err := json.Marshal(tokenClaims{NodeID: nodeID, Iat: t.now().Unix()})
	if err != nil {
		return Credential{}, err
	}

	body := base64.RawURLEncoding.EncodeToString(claims)

	return Credential{
		Scheme: SchemeToken,
		Value:  body + "." + t.sign(body),
	}, nil
}

func (t *TokenAuthenticator) Verify(cred Credential) (string, error) {
	body, sig, ok := strings.Cut(cred.Value, ".")
	if !ok {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("malformed token"))
	}

	if !hmac.Equal([]byte(t.sign(body)), []byte(sig)) {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("bad signature"))
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, err)
	}

	var claims tokenClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, err)
	}
	if claims.NodeID == "" {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("empty node id"))
	}

	issued := time.Unix(claims.Iat, 0)
	if t.now().Sub(issued) > t.ttl {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("token expired"))
	}

	return claims.NodeID, nil
}

func (t *TokenAuthenticator) sign(body string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(body))

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

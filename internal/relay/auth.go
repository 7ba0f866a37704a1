package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAuthSkew = 60 * time.Second
	DefaultNonceTTL = 3 * time.Minute
	DefaultNonceMax = 20000
)

// SignRegister computes the register signature over client_id, ts and nonce,
// line-separated, keyed with the shared secret.
func SignRegister(secret []byte, clientID string, ts int64, nonce string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is empty")
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return "", errors.New("client_id is required")
	}
	n := strings.TrimSpace(nonce)
	if n == "" {
		return "", errors.New("nonce is required")
	}
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s\n%d\n%s", id, ts, n)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

type AuthVerifier struct {
	Secret []byte
	Skew   time.Duration
	Nonces *NonceCache
	Now    func() time.Time
}

func (v AuthVerifier) VerifyRegister(clientID string, auth RegisterAuth) error {
	if len(v.Secret) == 0 {
		return errors.New("auth secret is not configured")
	}
	nowFn := v.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	now := nowFn()

	if strings.TrimSpace(clientID) == "" {
		return errors.New("client_id is required")
	}
	if auth.TS == 0 || strings.TrimSpace(auth.Nonce) == "" || strings.TrimSpace(auth.Sig) == "" {
		return errors.New("auth fields ts/nonce/sig are required")
	}

	skew := v.Skew
	if skew <= 0 {
		skew = DefaultAuthSkew
	}
	ts := time.Unix(auth.TS, 0).UTC()
	if ts.After(now.Add(skew)) || ts.Before(now.Add(-skew)) {
		return fmt.Errorf("auth.ts outside allowed skew (ts=%s now=%s skew=%s)", ts.Format(time.RFC3339), now.Format(time.RFC3339), skew)
	}

	if v.Nonces != nil {
		if ok := v.Nonces.Use(strings.TrimSpace(auth.Nonce), now); !ok {
			return errors.New("auth.nonce already used")
		}
	}

	expected, err := SignRegister(v.Secret, clientID, auth.TS, auth.Nonce)
	if err != nil {
		return err
	}
	expBytes, err := hex.DecodeString(expected)
	if err != nil {
		return err
	}
	gotBytes, err := hex.DecodeString(strings.TrimSpace(auth.Sig))
	if err != nil {
		return errors.New("auth.sig is not hex")
	}
	if !hmac.Equal(expBytes, gotBytes) {
		return errors.New("invalid auth signature")
	}
	return nil
}

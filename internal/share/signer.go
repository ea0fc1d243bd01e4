package share

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
)

// Signer authenticates share parameters with an HMAC-SHA256 signature
// carried in the sig parameter.
type Signer struct {
	secret []byte
}

// NewSigner returns a signer for secret, which must not be empty.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("share: empty signing secret")
	}
	return &Signer{secret: append([]byte(nil), secret...)}, nil
}

// Sign returns a copy of values with a sig parameter over the other keys.
func (s *Signer) Sign(values url.Values) url.Values {
	out := unsigned(values)
	out.Set(KeySignature, s.sign(out))
	return out
}

// Verify checks the sig parameter and returns values without it.
func (s *Signer) Verify(values url.Values) (url.Values, error) {
	sigs := values[KeySignature]
	if len(sigs) != 1 || sigs[0] == "" {
		return nil, fmt.Errorf("missing signature: %w", ErrMalformedToken)
	}
	out := unsigned(values)
	if !hmac.Equal([]byte(s.sign(out)), []byte(sigs[0])) {
		return nil, fmt.Errorf("signature mismatch: %w", ErrMalformedToken)
	}
	return out, nil
}

// sign covers the canonical encoding, which sorts keys.
func (s *Signer) sign(values url.Values) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(values.Encode()))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func unsigned(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, vs := range values {
		if k == KeySignature {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Package qrtoken issues and verifies the signed, time-limited tokens
// embedded in prescription and passport QR codes. A token is
// base64url(payload JSON) + "." + base64url(HMAC-SHA256 of the payload
// part); it carries identifiers and an expiry, never medical data.
package qrtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Verification failure codes, surfaced verbatim in API error responses.
const (
	CodeInvalidFormat    = "INVALID_TOKEN_FORMAT"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeExpired          = "TOKEN_EXPIRED"
	CodeParseError       = "TOKEN_PARSE_ERROR"
)

// Token lifetimes.
const (
	OrdonnanceTTL = 7 * 24 * time.Hour
	PassportTTL   = 30 * 24 * time.Hour
)

// VerifyError reports why a token was rejected.
type VerifyError struct {
	Code string
}

func (e *VerifyError) Error() string {
	return "token rejected: " + e.Code
}

// AsVerifyError extracts the rejection code from an error, if any.
func AsVerifyError(err error) (*VerifyError, bool) {
	var ve *VerifyError
	ok := errors.As(err, &ve)
	return ve, ok
}

// OrdonnancePayload is embedded in prescription QR tokens. Exp is
// milliseconds since the epoch.
type OrdonnancePayload struct {
	ID  string `json:"id"`
	Exp int64  `json:"exp"`
}

// PassportPayload is embedded in passport QR tokens. PatientID and
// SummaryHash are both optional, the hash keys the cached medical summary.
type PassportPayload struct {
	Type        string `json:"type"`
	PatientID   string `json:"patientId,omitempty"`
	SummaryHash string `json:"summaryHash,omitempty"`
	Exp         int64  `json:"exp"`
}

// PassportType is the fixed type tag of passport payloads.
const PassportType = "passport"

// Signer signs and verifies tokens with a fixed HMAC secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func New(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("qrtoken: empty secret")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

func (s *Signer) sign(payloadB64 string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payloadB64))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Sign encodes the payload and appends its signature.
func (s *Signer) Sign(payload any) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(encoded)
	return payloadB64 + "." + s.sign(payloadB64), nil
}

// Verify checks format, signature and expiry, then decodes the payload into
// out. Failures are reported as *VerifyError.
func (s *Signer) Verify(token string, out any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return &VerifyError{Code: CodeInvalidFormat}
	}

	expected := s.sign(parts[0])
	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
		return &VerifyError{Code: CodeInvalidSignature}
	}

	decoded, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return &VerifyError{Code: CodeParseError}
	}

	var probe struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(decoded, &probe); err != nil {
		return &VerifyError{Code: CodeParseError}
	}
	if probe.Exp > 0 && s.now().UnixMilli() > probe.Exp {
		return &VerifyError{Code: CodeExpired}
	}

	if out != nil {
		if err := json.Unmarshal(decoded, out); err != nil {
			return &VerifyError{Code: CodeParseError}
		}
	}
	return nil
}

// IssueOrdonnance builds a 7-day prescription token.
func (s *Signer) IssueOrdonnance(ordonnanceID string) (token string, expiresAt time.Time, err error) {
	expiresAt = s.now().Add(OrdonnanceTTL)
	token, err = s.Sign(OrdonnancePayload{ID: ordonnanceID, Exp: expiresAt.UnixMilli()})
	return token, expiresAt, err
}

// IssuePassport builds a 30-day passport token.
func (s *Signer) IssuePassport(patientID, summaryHash string) (token string, expiresAt time.Time, err error) {
	expiresAt = s.now().Add(PassportTTL)
	token, err = s.Sign(PassportPayload{
		Type:        PassportType,
		PatientID:   patientID,
		SummaryHash: summaryHash,
		Exp:         expiresAt.UnixMilli(),
	})
	return token, expiresAt, err
}

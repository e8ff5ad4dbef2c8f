package models

import "time"

// TokenPurpose constrains where a credential may be accepted.
type TokenPurpose string

const (
	PurposeAccess        TokenPurpose = "access"
	PurposeRefresh       TokenPurpose = "refresh"
	PurposeResetPassword TokenPurpose = "resetPassword"
	PurposeVerifyEmail   TokenPurpose = "verifyEmail"
	PurposeTwoFa         TokenPurpose = "twoFa"
)

// TokenKind selects the validation algorithm for a stored credential.
type TokenKind string

const (
	KindSession     TokenKind = "session"
	KindOneTimeCode TokenKind = "one-time-code"
)

// Token is a persisted credential record. For KindSession the value is the
// signed credential string; for KindOneTimeCode it is a salted hash of the
// code, never the plaintext. RequestCount and CooldownMinutes are maintained
// only for one-time-code records.
type Token struct {
	ID              string
	UserID          string
	Value           string
	Purpose         TokenPurpose
	Kind            TokenKind
	ExpiresAt       time.Time
	Revoked         bool
	RequestCount    int
	CooldownMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsSessionPurpose reports whether p names one of the session credential
// purposes.
func IsSessionPurpose(p TokenPurpose) bool {
	return p == PurposeAccess || p == PurposeRefresh
}

// IsCodePurpose reports whether p names one of the one-time-code purposes.
func IsCodePurpose(p TokenPurpose) bool {
	switch p {
	case PurposeResetPassword, PurposeVerifyEmail, PurposeTwoFa:
		return true
	}
	return false
}

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// ResetTokenIssuer derives and validates password-reset tokens without
// persisting anything. A token is an HMAC over the current time bucket and
// the user's stored password digest, keyed by a reset-specific pepper:
//
//	token = HMAC-SHA256(reset_pepper, bucket_unix || "." || hashed_password)
//
// Because the stored digest is an input, changing the password silently
// invalidates every token issued before the change. Validation accepts the
// current bucket and the one before it, so a token issued at time T is good
// for between one and two bucket widths depending on where in the bucket T
// fell. With the default 1-hour bucket that is 60-120 minutes; the
// asymmetry is a property of the scheme, not a bug.
type ResetTokenIssuer struct {
	pepper []byte
	bucket time.Duration
}

// NewResetTokenIssuer creates an issuer with the given reset pepper and
// bucket width. Bucket widths below one minute are clamped to one minute.
func NewResetTokenIssuer(pepper string, bucket time.Duration) *ResetTokenIssuer {
	if bucket < time.Minute {
		bucket = time.Minute
	}
	return &ResetTokenIssuer{pepper: []byte(pepper), bucket: bucket}
}

// Issue derives the reset token for the user's current credential at the
// given time. Idempotent within a bucket: re-issuing during the same bucket
// returns the same token, so a user clicking "forgot password" twice gets
// two emails with one working link.
func (i *ResetTokenIssuer) Issue(user *User, now time.Time) string {
	return i.tokenAt(user.PasswordHash, now.Truncate(i.bucket))
}

// Validate reports whether token matches the user's credential for the
// current or immediately preceding bucket. Comparisons are constant time.
func (i *ResetTokenIssuer) Validate(user *User, token string, now time.Time) bool {
	current := now.Truncate(i.bucket)
	previous := current.Add(-i.bucket)

	for _, bucket := range []time.Time{current, previous} {
		expected := i.tokenAt(user.PasswordHash, bucket)
		if hmac.Equal([]byte(expected), []byte(token)) {
			return true
		}
	}
	return false
}

// tokenAt computes the token for one specific bucket start.
func (i *ResetTokenIssuer) tokenAt(hashedPassword string, bucket time.Time) string {
	mac := hmac.New(sha256.New, i.pepper)
	mac.Write([]byte(strconv.FormatInt(bucket.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write([]byte(hashedPassword))
	return hex.EncodeToString(mac.Sum(nil))
}

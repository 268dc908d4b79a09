package auth

import (
	"testing"
	"time"
)

func testUser(hash string) *User {
	return &User{ID: "u1", PasswordHash: hash}
}

func TestResetToken_ValidWithinWindow(t *testing.T) {
	issuer := NewResetTokenIssuer("reset-pepper", time.Hour)
	user := testUser("digest-one")

	// Issue exactly on a bucket boundary so the window is predictable.
	issued := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	token := issuer.Issue(user, issued)

	if !issuer.Validate(user, token, issued) {
		t.Error("token invalid at issue time")
	}
	if !issuer.Validate(user, token, issued.Add(time.Hour-time.Second)) {
		t.Error("token invalid just before one bucket width")
	}
	if !issuer.Validate(user, token, issued.Add(2*time.Hour-time.Second)) {
		t.Error("token invalid within the previous-bucket grace")
	}
	if issuer.Validate(user, token, issued.Add(2*time.Hour)) {
		t.Error("token still valid at two bucket widths")
	}
}

func TestResetToken_MidBucketIssueStillCoversNextBucket(t *testing.T) {
	issuer := NewResetTokenIssuer("reset-pepper", time.Hour)
	user := testUser("digest-one")

	// Issued late in a bucket: validity runs to the end of the NEXT
	// bucket, so the effective window is just over one bucket width.
	issued := time.Date(2026, 3, 14, 10, 59, 0, 0, time.UTC)
	token := issuer.Issue(user, issued)

	if !issuer.Validate(user, token, issued.Add(30*time.Minute)) {
		t.Error("token invalid in the following bucket")
	}
	if issuer.Validate(user, token, issued.Add(2*time.Hour)) {
		t.Error("token valid two buckets after a late issue")
	}
}

func TestResetToken_IdempotentWithinBucket(t *testing.T) {
	issuer := NewResetTokenIssuer("reset-pepper", time.Hour)
	user := testUser("digest-one")

	a := issuer.Issue(user, time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC))
	b := issuer.Issue(user, time.Date(2026, 3, 14, 10, 55, 0, 0, time.UTC))

	if a != b {
		t.Error("re-issue within the same bucket produced a different token")
	}
}

func TestResetToken_PasswordChangeInvalidates(t *testing.T) {
	issuer := NewResetTokenIssuer("reset-pepper", time.Hour)
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	user := testUser("digest-one")
	token := issuer.Issue(user, now)

	// Same user, new stored digest: every outstanding token dies without
	// any explicit revocation.
	user.PasswordHash = "digest-two"

	if issuer.Validate(user, token, now) {
		t.Error("token survived a password change")
	}
}

func TestResetToken_PepperIsolation(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	user := testUser("digest-one")

	token := NewResetTokenIssuer("pepper-one", time.Hour).Issue(user, now)

	if NewResetTokenIssuer("pepper-two", time.Hour).Validate(user, token, now) {
		t.Error("token issued under one pepper validated under another")
	}
}

func TestResetToken_RejectsGarbage(t *testing.T) {
	issuer := NewResetTokenIssuer("reset-pepper", time.Hour)
	user := testUser("digest-one")
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	for _, token := range []string{"", "nonsense", "deadbeef"} {
		if issuer.Validate(user, token, now) {
			t.Errorf("garbage token %q validated", token)
		}
	}
}

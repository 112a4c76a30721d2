package core

import "testing"

func TestHashPasswordIsDeterministic(t *testing.T) {
	if HashPassword("1234") != HashPassword("1234") {
		t.Fatalf("equal passwords must produce equal digests")
	}
	if HashPassword("1234") == HashPassword("12345") {
		t.Fatalf("different passwords must produce different digests")
	}
	// Known SHA-256 vector so stored digests stay portable across releases.
	if got := HashPassword("1234"); got != "03ac674216f3e15c761ee1a5e255f067953623c8b388b4459e13f978d7c846f4" {
		t.Fatalf("unexpected digest %s", got)
	}
}

func TestOperatorCredentialValidate(t *testing.T) {
	cred := OperatorCredential{Username: "admin", PassSHA256: HashPassword("1234")}
	if !cred.Validate("admin", "1234") {
		t.Fatalf("expected matching login to validate")
	}
	if cred.Validate("admin", "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
	if cred.Validate("other", "1234") {
		t.Fatalf("expected wrong username to fail")
	}
	if (OperatorCredential{}).Validate("", "") {
		t.Fatalf("expected empty credential to reject everything")
	}
}

func TestOperatorFromEnv(t *testing.T) {
	t.Setenv("SHELTERCORE_OPERATOR_USER", "")
	t.Setenv("SHELTERCORE_OPERATOR_PASS_SHA256", "")
	cred := OperatorFromEnv()
	if cred.Username != "admin" || !cred.Validate("admin", "1234") {
		t.Fatalf("expected built-in default login, got %+v", cred)
	}

	t.Setenv("SHELTERCORE_OPERATOR_USER", "staff")
	t.Setenv("SHELTERCORE_OPERATOR_PASS_SHA256", HashPassword("s3cret"))
	cred = OperatorFromEnv()
	if !cred.Validate("staff", "s3cret") {
		t.Fatalf("expected env override to validate")
	}
	if cred.Validate("admin", "1234") {
		t.Fatalf("expected default login to stop working after override")
	}
}

package svctoken

import (
	"errors"
	"testing"
	"time"
)

func withSecret(t *testing.T, value string) {
	t.Helper()
	ResetSecretForTests()
	t.Setenv("COACHSCOPE_SVC_SECRET", value)
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidate(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := Generate("pipeline-1", []string{"Ingest", "ingest", " "}, time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "pipeline-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if !claims.HasScope(ScopeIngest) {
		t.Fatalf("scopes = %v", claims.Scopes)
	}
	if len(claims.Scopes) != 1 {
		t.Fatalf("scopes not deduped: %v", claims.Scopes)
	}
	if claims.HasScope("admin") {
		t.Fatal("unexpected scope granted")
	}
}

func TestGenerateValidation(t *testing.T) {
	withSecret(t, "test-secret")

	if _, err := Generate("", []string{ScopeIngest}, time.Hour); err == nil {
		t.Fatal("empty subject accepted")
	}
	if _, err := Generate("svc", []string{ScopeIngest}, 0); err == nil {
		t.Fatal("zero ttl accepted")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := Generate("pipeline-1", []string{ScopeIngest}, time.Millisecond)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: err = %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	withSecret(t, "first-secret")
	token, err := Generate("pipeline-1", []string{ScopeIngest}, time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	withSecret(t, "second-secret")
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign signature: err = %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	withSecret(t, "test-secret")

	for _, raw := range []string{"", "   ", "not.a.jwt", "eyJhbGciOiJub25lIn0..sig"} {
		if _, err := ParseAndValidate(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("ParseAndValidate(%q): err = %v", raw, err)
		}
	}
}

func TestMissingSecret(t *testing.T) {
	ResetSecretForTests()
	t.Setenv("COACHSCOPE_SVC_SECRET", "")
	t.Cleanup(ResetSecretForTests)

	if _, err := Generate("svc", []string{ScopeIngest}, time.Hour); err == nil {
		t.Fatal("generate succeeded without a secret")
	}
}

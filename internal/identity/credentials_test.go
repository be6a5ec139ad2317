package identity

import (
	"strings"
	"testing"
)

func TestMintRoundTrip(t *testing.T) {
	minted, err := Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !strings.HasPrefix(minted.Token, TokenPrefix) {
		t.Fatalf("token %q lacks scheme prefix", minted.Token)
	}
	if strings.Contains(minted.Token, minted.SecretHash) {
		t.Fatal("token must not embed the stored hash")
	}

	prefix, secret, err := SplitToken(minted.Token)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if prefix != minted.Prefix {
		t.Fatalf("prefix = %q, want %q", prefix, minted.Prefix)
	}
	if !VerifySecret(minted.SecretHash, secret) {
		t.Fatal("secret does not verify against its own hash")
	}
	if VerifySecret(minted.SecretHash, secret+"x") {
		t.Fatal("tampered secret verified")
	}
}

func TestMintUnique(t *testing.T) {
	a, err := Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	b, err := Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if a.Token == b.Token || a.Prefix == b.Prefix && a.SecretHash == b.SecretHash {
		t.Fatal("two mints produced identical material")
	}
}

func TestSplitTokenRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"cs",
		"cs_",
		"cs_prefixonly",
		"cs_prefix_",
		"cs__secret",
		"xx_prefix_secret",
		"not a token at all",
	}
	for _, raw := range cases {
		if _, _, err := SplitToken(raw); err == nil {
			t.Fatalf("SplitToken(%q) accepted malformed input", raw)
		}
	}
}

func TestVerifySecretEmptyHash(t *testing.T) {
	if VerifySecret("", "anything") {
		t.Fatal("empty hash verified")
	}
}

package identity

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeStore struct {
	creds    map[string][]Credential
	links    map[string][]string
	touched  []string
	touchErr error
}

func (s *fakeStore) CredentialsByPrefix(_ context.Context, prefix string) ([]Credential, error) {
	return s.creds[prefix], nil
}

func (s *fakeStore) TouchCredential(_ context.Context, id string) error {
	s.touched = append(s.touched, id)
	return s.touchErr
}

func (s *fakeStore) AssignedClientIDs(_ context.Context, coachID string) ([]string, error) {
	return s.links[coachID], nil
}

func mintInto(t *testing.T, s *fakeStore, kind Kind, subjectID string, mod func(*Credential)) string {
	t.Helper()
	minted, err := Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	cred := Credential{
		ID:         "cred-" + subjectID,
		Prefix:     minted.Prefix,
		SecretHash: minted.SecretHash,
		Kind:       kind,
		SubjectID:  subjectID,
	}
	if mod != nil {
		mod(&cred)
	}
	s.creds[cred.Prefix] = append(s.creds[cred.Prefix], cred)
	return minted.Token
}

func TestResolveCoach(t *testing.T) {
	store := &fakeStore{
		creds: map[string][]Credential{},
		links: map[string][]string{"coach-1": {"client-b", "client-a"}},
	}
	token := mintInto(t, store, KindCoach, "coach-1", nil)

	r := NewResolver(store)
	actor, err := r.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if actor.Kind != KindCoach || actor.ID != "coach-1" {
		t.Fatalf("actor = %+v", actor)
	}
	if !reflect.DeepEqual(actor.AssignedClientIDs, []string{"client-a", "client-b"}) {
		t.Fatalf("assigned clients = %v", actor.AssignedClientIDs)
	}
	if len(store.touched) != 1 || store.touched[0] != "cred-coach-1" {
		t.Fatalf("touched = %v", store.touched)
	}
}

func TestResolveTouchFailureIgnored(t *testing.T) {
	store := &fakeStore{
		creds:    map[string][]Credential{},
		touchErr: errors.New("write failed"),
	}
	token := mintInto(t, store, KindAdmin, "admin-1", nil)

	r := NewResolver(store)
	if _, err := r.Resolve(context.Background(), token); err != nil {
		t.Fatalf("resolve must succeed despite touch failure: %v", err)
	}
}

func TestResolveDenials(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{creds: map[string][]Credential{}}

	revoked := mintInto(t, store, KindClient, "client-r", func(c *Credential) { c.Revoked = true })
	expired := mintInto(t, store, KindClient, "client-e", func(c *Credential) { c.ExpiresAt = now.Add(-time.Hour) })
	valid := mintInto(t, store, KindClient, "client-v", nil)
	prefix, _, _ := SplitToken(valid)
	wrongSecret := "cs_" + prefix + "_notthesecret"

	cases := []struct {
		name   string
		token  string
		reason string
	}{
		{"malformed", "garbage", ReasonMalformed},
		{"empty", "", ReasonMalformed},
		{"wrong secret", wrongSecret, ReasonNotFound},
		{"unknown prefix", "cs_zzzzzzzz_somesecretvalue", ReasonNotFound},
		{"revoked", revoked, ReasonRevoked},
		{"expired", expired, ReasonExpired},
	}

	r := NewResolver(store, WithClock(func() time.Time { return now }))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tc.token)
			if !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("err = %v, want ErrInvalidCredential", err)
			}
			// All denials present the identical message to callers.
			if err.Error() != ErrInvalidCredential.Error() {
				t.Fatalf("message leaks reason: %q", err.Error())
			}
			if got := DenialReason(err); got != tc.reason {
				t.Fatalf("reason = %q, want %q", got, tc.reason)
			}
		})
	}
}

func TestResolveRevocationImmediate(t *testing.T) {
	store := &fakeStore{creds: map[string][]Credential{}}
	token := mintInto(t, store, KindCoach, "coach-1", nil)

	r := NewResolver(store)
	if _, err := r.Resolve(context.Background(), token); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	prefix, _, _ := SplitToken(token)
	store.creds[prefix][0].Revoked = true

	_, err := r.Resolve(context.Background(), token)
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("revoked credential still resolves: %v", err)
	}
	if got := DenialReason(err); got != ReasonRevoked {
		t.Fatalf("reason = %q", got)
	}
}

package pg

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pgvector/pgvector-go"

	"coachscope.org/internal/audit"
	"coachscope.org/internal/domain"
	"coachscope.org/internal/identity"
	"coachscope.org/internal/scope"
)

func TestInsertDataItem(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into data_items").
		WithArgs(sqlmock.AnyArg(), "session_note", "coach-1", "client-1", nil, "private", sqlmock.AnyArg(), "body").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))
	mock.ExpectExec("insert into chunks").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 0, "body", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	item := domain.DataItem{
		DataType:   "session_note",
		CoachID:    "coach-1",
		ClientID:   "client-1",
		Visibility: domain.VisibilityPrivate,
		Content:    "body",
	}
	chunks := []domain.Chunk{{Seq: 0, Content: "body", Embedding: []float32{0.1, 0.2}}}

	if err := s.InsertDataItem(context.Background(), &item, chunks); err != nil {
		t.Fatalf("InsertDataItem: %v", err)
	}
	if item.ID == "" {
		t.Fatal("item ID not assigned")
	}
	if chunks[0].DataItemID != item.ID {
		t.Fatalf("chunk not linked to item: %q", chunks[0].DataItemID)
	}
	if !item.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v", item.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertDataItemInvalidWritesNothing(t *testing.T) {
	s, mock := newMockStore(t)

	item := domain.DataItem{DataType: "session_note", Visibility: "backstage"}
	if err := s.InsertDataItem(context.Background(), &item, nil); err == nil {
		t.Fatal("invalid item accepted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSearchChunksAnonymous(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("select set_config").
		WithArgs("anonymous", "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	rows := sqlmock.NewRows([]string{
		"id", "data_item_id", "seq", "content", "similarity",
		"id", "data_type", "coach_id", "client_id", "organization_id",
		"visibility", "attributes", "created_at", "updated_at",
	}).AddRow(
		"chunk-1", "item-1", 0, "grounding exercise", 0.91,
		"item-1", "exercise", nil, nil, nil,
		"public", []byte(`{"topic":"focus"}`), created, created,
	)
	mock.ExpectQuery("from chunks c").
		WithArgs(sqlmock.AnyArg(), 0.3, 10).
		WillReturnRows(rows)
	mock.ExpectCommit()

	eff := scope.Effective{Scope: scope.Filter{ActorKind: identity.KindAnonymous}}
	got, err := s.SearchChunks(context.Background(), eff, []float32{0.1, 0.2}, 0.3, 10)
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d matches", len(got))
	}
	m := got[0]
	if m.Similarity != 0.91 || m.Chunk.ID != "chunk-1" {
		t.Fatalf("match = %+v", m)
	}
	if m.Item.Visibility != domain.VisibilityPublic || m.Item.Attributes["topic"] != "focus" {
		t.Fatalf("item = %+v", m.Item)
	}
	if m.Item.Content != "grounding exercise" {
		t.Fatalf("item content = %q", m.Item.Content)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSearchChunksZeroLimit(t *testing.T) {
	s, mock := newMockStore(t)
	eff := scope.Effective{Scope: scope.Filter{ActorKind: identity.KindAnonymous}}
	got, err := s.SearchChunks(context.Background(), eff, []float32{0.1}, 0.3, 0)
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSearchPredicate(t *testing.T) {
	vec := pgvector.NewVector([]float32{0.1})

	t.Run("admin", func(t *testing.T) {
		eff := scope.Effective{Scope: scope.Filter{ActorKind: identity.KindAdmin, CanSeeAll: true}}
		where, args := searchPredicate(eff, vec, 0.3)
		if strings.Contains(where, "visibility") {
			t.Fatalf("admin predicate restricts visibility: %s", where)
		}
		if len(args) != 2 {
			t.Fatalf("args = %v", args)
		}
	})

	t.Run("coach", func(t *testing.T) {
		eff := scope.Effective{Scope: scope.Filter{
			ActorKind: identity.KindCoach,
			ActorID:   "coach-1",
			OwnedIDs: map[string]struct{}{
				"coach-1": {}, "client-a": {},
			},
			VisibleOrgIDs: map[string]struct{}{"org-1": {}},
		}}
		where, args := searchPredicate(eff, vec, 0.3)
		for _, frag := range []string{"'private'", "'coach_only'", "'org_visible'", "'public'"} {
			if !strings.Contains(where, frag) {
				t.Fatalf("coach predicate missing %s: %s", frag, where)
			}
		}
		// vec, threshold, actor ID, client IDs, org IDs
		if len(args) != 5 {
			t.Fatalf("args = %v", args)
		}
	})

	t.Run("client", func(t *testing.T) {
		eff := scope.Effective{Scope: scope.Filter{
			ActorKind: identity.KindClient,
			ActorID:   "client-a",
			OwnedIDs:  map[string]struct{}{"client-a": {}},
		}}
		where, _ := searchPredicate(eff, vec, 0.3)
		if !strings.Contains(where, "di.coach_id is null") {
			t.Fatalf("client predicate must exclude coach-held items: %s", where)
		}
		if strings.Contains(where, "org_visible") {
			t.Fatalf("client predicate exposes org items: %s", where)
		}
	})

	t.Run("dimensions", func(t *testing.T) {
		eff := scope.Effective{
			Scope:          scope.Filter{ActorKind: identity.KindAdmin, CanSeeAll: true},
			Types:          []string{"transcript"},
			CoachID:        "coach-1",
			ClientID:       "client-a",
			OrganizationID: "org-1",
		}
		where, args := searchPredicate(eff, vec, 0.3)
		for _, frag := range []string{"di.data_type = any", "di.coach_id =", "di.client_id =", "di.organization_id ="} {
			if !strings.Contains(where, frag) {
				t.Fatalf("predicate missing %s: %s", frag, where)
			}
		}
		if len(args) != 6 {
			t.Fatalf("args = %v", args)
		}
	})
}

func TestGetDataItemNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("from data_items where id =").
		WithArgs("item-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := s.GetDataItem(context.Background(), "item-missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAppendAuditRecord(t *testing.T) {
	s, mock := newMockStore(t)
	occurred := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("insert into audit_log").
		WithArgs("rec-1", occurred, string(audit.EventSearch), "coach", "coach-1",
			"req-1", nil, "burnout recovery", sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := audit.Record{
		ID:          "rec-1",
		OccurredAt:  occurred,
		Event:       audit.EventSearch,
		ActorKind:   "coach",
		ActorID:     "coach-1",
		RequestID:   "req-1",
		Query:       "burnout recovery",
		Filters:     map[string]any{"limit": 10},
		ResultCount: 3,
	}
	if err := s.Append(context.Background(), &rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

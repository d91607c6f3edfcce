package pgstore

import (
	"testing"

	"github.com/tierline/tierline/internal/docstore"
)

func TestContainmentJSON(t *testing.T) {
	got, err := containmentJSON([]docstore.Filter{
		docstore.Eq("memberKey", "k1"),
		docstore.Eq("status", "paid"),
	})
	if err != nil {
		t.Fatalf("containmentJSON: %v", err)
	}
	want := `{"memberKey":"k1","status":"paid"}`
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestContainmentJSONWithoutFiltersMatchesAll(t *testing.T) {
	got, err := containmentJSON(nil)
	if err != nil {
		t.Fatalf("containmentJSON: %v", err)
	}
	if got != "{}" {
		t.Fatalf("expected empty object, got %s", got)
	}
}

func TestNormalizeCollection(t *testing.T) {
	if got := normalizeCollection("/users/k1/income/"); got != "users/k1/income" {
		t.Fatalf("unexpected collection %q", got)
	}
}

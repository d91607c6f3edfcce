package docstore

import "testing"

func TestSplitPath(t *testing.T) {
	cases := []struct {
		in, parent, leaf string
	}{
		{"users", "", "users"},
		{"users/k1/income", "users/k1", "income"},
		{"/users/k1/income/", "users/k1", "income"},
	}
	for _, tc := range cases {
		parent, leaf := SplitPath(tc.in)
		if parent != tc.parent || leaf != tc.leaf {
			t.Fatalf("SplitPath(%q) = (%q, %q), want (%q, %q)", tc.in, parent, leaf, tc.parent, tc.leaf)
		}
	}
}

func TestMatchesComparesNumbersAcrossTypes(t *testing.T) {
	data := map[string]any{"level": int64(2), "status": "active"}
	if !Matches(data, []Filter{Eq("level", 2.0), Eq("status", "active")}) {
		t.Fatalf("expected numeric filter to match across int64/float64")
	}
	if Matches(data, []Filter{Eq("status", "inactive")}) {
		t.Fatalf("expected mismatch on status")
	}
	if Matches(data, []Filter{Eq("missing", "x")}) {
		t.Fatalf("expected missing field to fail")
	}
}

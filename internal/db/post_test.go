package db

import "testing"

func TestPostIsInitial(t *testing.T) {
	tests := []struct {
		name    string
		parents []VersionParent
		want    bool
	}{
		{name: "nil parents", parents: nil, want: true},
		{name: "empty parents", parents: []VersionParent{}, want: true},
		{name: "one parent", parents: []VersionParent{{Version: "sha512t256-abc"}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := Post{VersionParents: tt.parents}
			if got := post.IsInitial(); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSQLiteDSNKeepsExplicitParams(t *testing.T) {
	if got := sqliteDSN("file:memdb?mode=memory&cache=shared"); got != "file:memdb?mode=memory&cache=shared" {
		t.Fatalf("unexpected dsn %q", got)
	}
	if got := sqliteDSN("data/tentpost.db"); got != "data/tentpost.db?"+sqliteParams {
		t.Fatalf("unexpected dsn %q", got)
	}
}

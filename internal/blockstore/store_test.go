package blockstore

import (
	"strings"
	"testing"

	"github.com/nibzard/ctxt/internal/models"
)

func note(body string) models.Block {
	return models.Block{ID: NewID(), Kind: models.KindNote, Body: body}
}

func source(title, origin, body string) models.Block {
	return models.Block{ID: NewID(), Kind: models.KindSource, Title: title, Origin: origin, Body: body}
}

func assertContiguous(t *testing.T, blocks []models.Block) {
	t.Helper()
	for i, b := range blocks {
		if b.Position != i {
			t.Fatalf("position[%d] = %d, want %d", i, b.Position, i)
		}
	}
}

func TestAppendAssignsPositions(t *testing.T) {
	var col []models.Block
	col = Append(col, note("a"))
	col = Append(col, note("b"))
	col = Append(col, source("t", "https://x", "c"))
	if len(col) != 3 {
		t.Fatalf("len = %d, want 3", len(col))
	}
	assertContiguous(t, col)
}

func TestRemoveRenumbers(t *testing.T) {
	var col []models.Block
	col = Append(col, note("a"))
	col = Append(col, note("b"))
	col = Append(col, note("c"))

	col = Remove(col, col[1].ID)
	if len(col) != 2 {
		t.Fatalf("len = %d, want 2", len(col))
	}
	if col[0].Body != "a" || col[1].Body != "c" {
		t.Errorf("order = %q, %q", col[0].Body, col[1].Body)
	}
	assertContiguous(t, col)
}

func TestRemoveUnknownIDIsIdentity(t *testing.T) {
	col := Append(nil, note("a"))
	got := Remove(col, "nope")
	if len(got) != 1 || got[0].ID != col[0].ID {
		t.Error("remove of unknown id changed the collection")
	}
}

func TestMove(t *testing.T) {
	var col []models.Block
	for _, b := range []string{"a", "b", "c", "d"} {
		col = Append(col, note(b))
	}

	cases := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"forward", 0, 2, []string{"b", "c", "a", "d"}},
		{"backward", 3, 0, []string{"d", "a", "b", "c"}},
		{"same", 1, 1, []string{"a", "b", "c", "d"}},
		{"from out of bounds", 9, 1, []string{"a", "b", "c", "d"}},
		{"to out of bounds", 1, -1, []string{"a", "b", "c", "d"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Move(col, tc.from, tc.to)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.want))
			}
			for i, body := range tc.want {
				if got[i].Body != body {
					t.Errorf("got[%d] = %q, want %q", i, got[i].Body, body)
				}
			}
			assertContiguous(t, got)
		})
	}
}

func TestMoveDoesNotMutateInput(t *testing.T) {
	var col []models.Block
	for _, b := range []string{"a", "b", "c"} {
		col = Append(col, note(b))
	}
	_ = Move(col, 0, 2)
	if col[0].Body != "a" || col[1].Body != "b" || col[2].Body != "c" {
		t.Error("input slice mutated by Move")
	}
}

func TestApplyPartialUpdate(t *testing.T) {
	col := Append(nil, source("old", "https://x", "body"))
	id := col[0].ID

	title := "new"
	col = Apply(col, id, Update{Title: &title})

	if col[0].Title != "new" {
		t.Errorf("title = %q", col[0].Title)
	}
	if col[0].Body != "body" || col[0].Origin != "https://x" {
		t.Error("untouched fields changed")
	}
	if col[0].ID != id || col[0].Position != 0 {
		t.Error("id or position changed through update")
	}
}

func TestDuplicate(t *testing.T) {
	col := Append(nil, source("Title", "https://x", "body"))
	col = Duplicate(col, col[0])

	if len(col) != 2 {
		t.Fatalf("len = %d, want 2", len(col))
	}
	clone := col[1]
	if clone.ID == col[0].ID {
		t.Error("clone shares id with source")
	}
	if !strings.HasSuffix(clone.Title, CopySuffix) {
		t.Errorf("clone title = %q, want copy suffix", clone.Title)
	}
	if clone.Body != "body" || clone.Origin != "https://x" {
		t.Error("clone fields differ from source")
	}
	assertContiguous(t, col)
}

func TestDuplicateUntitledKeepsEmptyTitle(t *testing.T) {
	col := Append(nil, note("body"))
	col = Duplicate(col, col[0])
	if col[1].Title != "" {
		t.Errorf("untitled clone got title %q", col[1].Title)
	}
}

func TestContiguityUnderMixedOperations(t *testing.T) {
	var col []models.Block
	for i := 0; i < 8; i++ {
		col = Append(col, note(strings.Repeat("x", i+1)))
	}
	col = Remove(col, col[3].ID)
	col = Move(col, 5, 1)
	col = Duplicate(col, col[2])
	col = Remove(col, col[0].ID)
	col = Move(col, 0, len(col)-1)

	assertContiguous(t, col)
	seen := map[string]bool{}
	for _, b := range col {
		if seen[b.ID] {
			t.Fatalf("duplicate id %s", b.ID)
		}
		seen[b.ID] = true
	}
}

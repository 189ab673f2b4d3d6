package match

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Fritadeira Elétrica 5L", "fritadeira eletrica 5l"},
		{"  NOTEBOOK--Gamer  ", "notebook gamer"},
		{"çãõ", "cao"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarityIdentical(t *testing.T) {
	if got := Similarity("Air Fryer Mondial 4L", "air fryer mondial 4l"); got != 1 {
		t.Errorf("Similarity identical-after-normalization = %v, want 1", got)
	}
}

func TestSimilarityDisjoint(t *testing.T) {
	if got := Similarity("xyzzy", "qwert"); got != 0 {
		t.Errorf("Similarity disjoint = %v, want 0", got)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	if got := Similarity("", "anything"); got != 0 {
		t.Errorf("Similarity with empty = %v, want 0", got)
	}
}

func TestSimilarityAccentInsensitive(t *testing.T) {
	a := Similarity("Fritadeira Elétrica", "Fritadeira Eletrica")
	if a != 1 {
		t.Errorf("accent variants should be identical, got %v", a)
	}
}

func TestSimilarityCloseBeatsFar(t *testing.T) {
	query := "Notebook Gamer Acer Nitro 5"
	near := Similarity(query, "Notebook Acer Nitro 5")
	far := Similarity(query, "Cadeira de Escritorio")
	if near <= far {
		t.Errorf("near=%v far=%v, want near > far", near, far)
	}
	if far > 0.2 {
		t.Errorf("unrelated names scored %v, want <= 0.2", far)
	}
}

func TestTopMatches(t *testing.T) {
	cands := []Candidate{
		{ID: "1", Name: "Cadeira de Escritorio"},
		{ID: "2", Name: "Notebook Acer Nitro 5"},
		{ID: "3", Name: "Notebook Gamer Acer Nitro 5 16GB"},
		{ID: "4", Name: "Fone de Ouvido"},
	}
	got := TopMatches("Notebook Gamer Acer Nitro 5", cands, 0.2, 5)
	if len(got) == 0 {
		t.Fatal("no matches above threshold")
	}
	if got[0].ID != "3" {
		t.Errorf("best match ID = %s, want 3", got[0].ID)
	}
	for _, c := range got {
		if c.Score <= 0.2 {
			t.Errorf("candidate %s scored %v, want > threshold", c.ID, c.Score)
		}
		if c.ID == "1" || c.ID == "4" {
			t.Errorf("unrelated candidate %s passed the threshold", c.ID)
		}
	}
}

func TestTopMatchesLimit(t *testing.T) {
	cands := make([]Candidate, 10)
	for i := range cands {
		cands[i] = Candidate{ID: string(rune('a' + i)), Name: "Air Fryer Mondial"}
	}
	got := TopMatches("Air Fryer Mondial", cands, 0.2, 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want capped at 5", len(got))
	}
	// Equal scores keep input order.
	if got[0].ID != "a" {
		t.Errorf("tie order broken: first = %s, want a", got[0].ID)
	}
}

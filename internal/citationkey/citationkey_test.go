package citationkey

import "testing"

func TestMint(t *testing.T) {
	cases := []struct {
		name     string
		surnames []string
		title    string
		want     string
	}{
		{
			name:     "S1 key minting scenario",
			surnames: []string{"Smith", "Jones"},
			title:    "A Study of the Approximation Methods",
			want:     "smith_studyapproximation",
		},
		{
			name:     "no surnames falls back to unknown",
			surnames: nil,
			title:    "Some Paper",
			want:     "unknown_somepaper",
		},
		{
			name:     "empty title keeps surname only",
			surnames: []string{"Turing"},
			title:    "",
			want:     "turing",
		},
		{
			name:     "title of only stop words keeps surname only",
			surnames: []string{"Lee"},
			title:    "The Of And",
			want:     "lee",
		},
		{
			name:     "punctuation and case are stripped",
			surnames: []string{"O'Brien"},
			title:    "Graphs, Trees & Topology!",
			want:     "obrien_graphstrees",
		},
		{
			name:     "surname itself is lowercased",
			surnames: []string{"MUNKRES"},
			title:    "Topology",
			want:     "munkres_topology",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Mint(tc.surnames, tc.title)
			if got != tc.want {
				t.Errorf("Mint(%v, %q) = %q, want %q", tc.surnames, tc.title, got, tc.want)
			}
		})
	}
}

func TestMint_Deterministic(t *testing.T) {
	surnames := []string{"Chen"}
	title := "Persistent Homology for Proteins"

	first := Mint(surnames, title)
	for i := 0; i < 10; i++ {
		if got := Mint(surnames, title); got != first {
			t.Fatalf("Mint is not deterministic: run %d got %q, want %q", i, got, first)
		}
	}
}

func TestMint_SameMetadataSameKey(t *testing.T) {
	// A source paper's own header and a citing paper's bibliography entry
	// for it must mint the same key from the same surname/title pair.
	sourceKey := Mint([]string{"Smith"}, "Topology of Persistence")
	referenceKey := Mint([]string{"Smith"}, "Topology of Persistence")
	if sourceKey != referenceKey {
		t.Errorf("expected identical keys, got %q and %q", sourceKey, referenceKey)
	}
}

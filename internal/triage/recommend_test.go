package triage

import "testing"

func TestRecommend_Bands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score     int
		critical  int
		shortTerm int
		longTerm  int
		doNot     int
		general   int
	}{
		{100, 5, 4, 4, 3, 0},
		{50, 5, 4, 4, 3, 0},
		{49, 0, 0, 0, 0, 6},
		{30, 0, 0, 0, 0, 6},
		{29, 0, 0, 0, 0, 3},
		{0, 0, 0, 0, 0, 3},
	}

	for _, tt := range tests {
		r := Recommend(tt.score)
		if len(r.Critical) != tt.critical || len(r.ShortTerm) != tt.shortTerm ||
			len(r.LongTerm) != tt.longTerm || len(r.DoNot) != tt.doNot || len(r.General) != tt.general {
			t.Errorf("Recommend(%d) sizes = %d/%d/%d/%d/%d, want %d/%d/%d/%d/%d", tt.score,
				len(r.Critical), len(r.ShortTerm), len(r.LongTerm), len(r.DoNot), len(r.General),
				tt.critical, tt.shortTerm, tt.longTerm, tt.doNot, tt.general)
		}
	}
}

func TestRecommend_BaselineSharesModerateContingencies(t *testing.T) {
	t.Parallel()

	low := Recommend(0).General
	mid := Recommend(40).General
	if low[0] != mid[4] || low[1] != mid[5] {
		t.Errorf("baseline contingencies %q, %q do not match moderate set", low[0], low[1])
	}
}

func TestRecommend_ReturnsCopies(t *testing.T) {
	t.Parallel()

	r := Recommend(90)
	r.Critical[0] = "changed"
	if Recommend(90).Critical[0] == "changed" {
		t.Error("Recommend exposed the shared catalog")
	}
}

package recommend

import (
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/kailas-cloud/vecrec/internal/domain"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"Widget Pro", []string{"widget", "pro"}},
		{"  USB-C -- cable!!", []string{"usb", "c", "cable"}},
		{"4K TV, 55\"", []string{"4k", "tv", "55"}},
		{"Café Crème", []string{"café", "crème"}},
		{"dup dup DUP", []string{"dup"}},
	}
	for _, tc := range tests {
		got := Tokenize(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for _, w := range tc.want {
			if _, ok := got[w]; !ok {
				t.Errorf("Tokenize(%q) missing %q", tc.in, w)
			}
		}
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 0},
		{"a", "", 0},
		{"a b", "a b", 1},
		{"a b", "b c", 1.0 / 3},
		{"best widget", "great widget", 1.0 / 3},
		{"x", "y", 0},
	}
	for _, tc := range tests {
		got := Jaccard(Tokenize(tc.a), Tokenize(tc.b))
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestPriceAffinity(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{"equal", 10, 10, 1},
		{"both zero", 0, 0, 1},
		{"close", 10, 12, 1 - 2.0/12},
		{"far", 10, 500, 1 - 490.0/500},
		{"below one", 0, 0.5, 0.5},
		{"negative", -1, 10, 0},
		{"nan", math.NaN(), 10, 0},
		{"inf", math.Inf(1), 10, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PriceAffinity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("PriceAffinity(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("affinity out of [0,1]: %v", got)
			}
		})
	}
}

func TestScore_SelfIsMax(t *testing.T) {
	p1, _, _ := widgets()
	s := NewScorer(DefaultWeights())

	if got := s.Score(p1, p1); got != 11 {
		t.Errorf("Score(p, p) = %v, want 11", got)
	}
	if DefaultWeights().Max() != 11 {
		t.Errorf("Max() = %v, want 11", DefaultWeights().Max())
	}
}

func TestScore_MissingFieldsDegrade(t *testing.T) {
	bare := prod(1, "", "", 0, "", "")
	s := NewScorer(DefaultWeights())

	// only price affinity (0 vs 0) contributes
	if got := s.Score(bare, bare); got != 2 {
		t.Errorf("Score(bare, bare) = %v, want 2", got)
	}
}

func TestScore_CaseInsensitiveLabels(t *testing.T) {
	a := prod(1, "Shoes", "Acme", 10, "x", "")
	b := prod(2, " shoes ", "ACME", 10, "y", "")
	s := NewScorer(Weights{Category: 3, Brand: 2, Name: 3, Description: 1, Price: 2})

	if got := s.Score(a, b); got != 3+2+2 {
		t.Errorf("Score = %v, want 7", got)
	}
}

func TestScore_WidgetScenarioOrdering(t *testing.T) {
	p1, p2, p3 := widgets()
	s := NewScorer(DefaultWeights())

	s12, s13 := s.Score(p1, p2), s.Score(p1, p3)
	if s12 <= s13 {
		t.Errorf("expected Score(1,2)=%v > Score(1,3)=%v", s12, s13)
	}
	// 3 (category) + 2 (brand) + 3*(1/3) + 1*(1/3) + 2*(1 - 2/12)
	want := 3 + 2 + 1 + 1.0/3 + 2*(1-2.0/12)
	if math.Abs(s12-want) > 1e-9 {
		t.Errorf("Score(1,2) = %v, want %v", s12, want)
	}
}

func TestScore_SymmetricProperty(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	words := []string{"red", "blue", "widget", "gadget", "pro", "max", "mini", "usb", "cable", ""}
	labels := []string{"", "A", "B", "a", "C"}
	phrase := func() string {
		n := r.IntN(4)
		out := ""
		for i := 0; i < n; i++ {
			out += words[r.IntN(len(words))] + " "
		}
		return out
	}

	s := NewScorer(DefaultWeights())
	for i := 0; i < 500; i++ {
		a := prod(int64(i*2+1), labels[r.IntN(len(labels))], labels[r.IntN(len(labels))],
			r.Float64()*100, phrase(), phrase())
		b := prod(int64(i*2+2), labels[r.IntN(len(labels))], labels[r.IntN(len(labels))],
			r.Float64()*100, phrase(), phrase())

		ab, ba := s.Score(a, b), s.Score(b, a)
		if math.Abs(ab-ba) > 1e-12 {
			t.Fatalf("pair %d: Score(a,b)=%v != Score(b,a)=%v", i, ab, ba)
		}
		if ab < 0 {
			t.Fatalf("pair %d: negative score %v", i, ab)
		}
		if self := s.Score(a, a); ab > self+1e-12 {
			t.Fatalf("pair %d: Score(a,b)=%v exceeds self score %v", i, ab, self)
		}
	}
}

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name string
		w    Weights
		ok   bool
	}{
		{"defaults", DefaultWeights(), true},
		{"all equal", Weights{1, 1, 1, 1, 1}, true},
		{"zero", Weights{}, false},
		{"negative", Weights{Category: 3, Brand: -1, Name: 3, Description: 0, Price: 2}, false},
		{"nan", Weights{Category: math.NaN(), Brand: 1, Name: 1, Description: 1, Price: 1}, false},
		{"category below name", Weights{Category: 1, Brand: 1, Name: 3, Description: 1, Price: 1}, false},
		{"price below brand", Weights{Category: 3, Brand: 2, Name: 3, Description: 1, Price: 1}, false},
		{"description above brand", Weights{Category: 3, Brand: 1, Name: 3, Description: 2, Price: 2}, false},
	}
	for i, tc := range tests {
		t.Run(tc.name+"_"+strconv.Itoa(i), func(t *testing.T) {
			err := tc.w.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

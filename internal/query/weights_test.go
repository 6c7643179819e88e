package query

import "testing"

func TestChooseWeightsNormalize(t *testing.T) {
	cases := []Features{
		{IsAcronym: true},
		{HasID: true},
		{HasSpecificEntity: true, TokenLen: 5},
		{HasSpecificEntity: true, TokenLen: 2},
		{HasYear: true},
		{HasNumber: true},
		{Abstract: true},
		{TokenLen: 2},
		{},
	}
	for _, f := range cases {
		w := ChooseWeights(f)
		const eps = 1e-9
		if diff := (w.Lexical + w.Dense) - 1.0; diff < -eps || diff > eps {
			t.Errorf("weights for %+v do not sum to 1: %+v", f, w)
		}
	}
}

func TestChooseWeightsAcronymOrID(t *testing.T) {
	w := ChooseWeights(Features{IsAcronym: true})
	if w.Lexical != 0.8 || w.Dense != 0.2 {
		t.Errorf("acronym weights = %+v, want (0.8, 0.2)", w)
	}
}

func TestChooseWeightsYearAndNumber(t *testing.T) {
	w := ChooseWeights(Features{HasYear: true, HasNumber: true})
	if w.Lexical != 0.65 || w.Dense != 0.35 {
		t.Errorf("year+number weights = %+v, want (0.65, 0.35)", w)
	}
}

func TestChooseWeightsAbstractDefault(t *testing.T) {
	w := ChooseWeights(Features{Abstract: true})
	if w.Lexical != 0.3 || w.Dense != 0.7 {
		t.Errorf("abstract weights = %+v, want (0.3, 0.7)", w)
	}
}

func TestChooseWeightsDefault(t *testing.T) {
	w := ChooseWeights(Features{TokenLen: 10, HasNamedEntity: true})
	if w.Lexical != 0.45 || w.Dense != 0.55 {
		t.Errorf("default weights = %+v, want (0.45, 0.55)", w)
	}
}

func TestIsFactual(t *testing.T) {
	if !(Features{HasID: true}).IsFactual() {
		t.Error("expected HasID to be factual")
	}
	if (Features{Abstract: true}).IsFactual() {
		t.Error("abstract alone should not be factual")
	}
}

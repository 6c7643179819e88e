package query

import (
	"context"
	"reflect"
	"testing"
)

type fakeNER struct {
	ents []Entity
}

func (f fakeNER) Entities(ctx context.Context, text string) ([]Entity, error) {
	return f.ents, nil
}

func TestAnalyzeAcronym(t *testing.T) {
	f, err := Analyze(context.Background(), "PAN", fakeNER{})
	if err != nil {
		t.Fatal(err)
	}
	if !f.IsAcronym {
		t.Error("expected IsAcronym=true for PAN")
	}
	if f.HasID {
		t.Error("expected HasID=false for PAN")
	}
}

func TestAnalyzeYearAndNumber(t *testing.T) {
	f, err := Analyze(context.Background(), "inflacja w 2023 roku", fakeNER{})
	if err != nil {
		t.Fatal(err)
	}
	if !f.HasYear {
		t.Error("expected HasYear=true")
	}
	if !f.HasNumber {
		t.Error("expected HasNumber=true")
	}
	if f.IsAcronym {
		t.Error("expected IsAcronym=false for a full sentence")
	}
}

func TestAnalyzeAbstract(t *testing.T) {
	f, err := Analyze(context.Background(), "jaki jest sens odpowiedzialności", fakeNER{})
	if err != nil {
		t.Fatal(err)
	}
	if !f.Abstract {
		t.Error("expected Abstract=true")
	}
}

func TestAnalyzeID(t *testing.T) {
	f, err := Analyze(context.Background(), "Czy dokument ISO-9001 obowiązuje?", fakeNER{})
	if err != nil {
		t.Fatal(err)
	}
	if !f.HasID {
		t.Error("expected HasID=true for ISO-9001")
	}
	if !f.IsQuestion {
		t.Error("expected IsQuestion=true")
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	ner := fakeNER{ents: []Entity{{Text: "Jan Kowalski", Label: "persName"}}}
	a, err := Analyze(context.Background(), "Co mówi Jan Kowalski o kryzysie?", ner)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Analyze(context.Background(), "Co mówi Jan Kowalski o kryzysie?", ner)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Analyze not deterministic: %+v != %+v", a, b)
	}
}

func TestAnalyzeFilterWord(t *testing.T) {
	f, err := Analyze(context.Background(), "dokumenty autora od 2020", fakeNER{})
	if err != nil {
		t.Fatal(err)
	}
	if !f.HasFilter {
		t.Error("expected HasFilter=true")
	}
}

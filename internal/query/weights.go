package query

// Weights is a (lexical, dense) fusion weight pair; the invariant
// Lexical+Dense == 1.0 holds for every rule in ChooseWeights.
type Weights struct {
	Lexical float64
	Dense   float64
}

// ChooseWeights implements the Weight Chooser (C2): a deterministic decision
// tree over Features, first matching rule wins.
func ChooseWeights(f Features) Weights {
	switch {
	case f.IsAcronym || f.HasID:
		return Weights{Lexical: 0.8, Dense: 0.2}
	case f.HasSpecificEntity:
		if f.TokenLen > 4 {
			return Weights{Lexical: 0.7, Dense: 0.3}
		}
		return Weights{Lexical: 0.6, Dense: 0.4}
	case f.HasYear || f.HasNumber:
		return Weights{Lexical: 0.65, Dense: 0.35}
	case f.Abstract:
		return Weights{Lexical: 0.3, Dense: 0.7}
	case f.TokenLen <= 3 && !f.HasNamedEntity:
		return Weights{Lexical: 0.3, Dense: 0.7}
	default:
		return Weights{Lexical: 0.45, Dense: 0.55}
	}
}

// IsFactual reports whether Features describes a query the Filter (C6)
// should treat as factual for its cosine-similarity fallback rule.
func (f Features) IsFactual() bool {
	return f.IsAcronym || f.HasID || f.HasNumber || f.HasYear || f.HasFilter
}

package salary

import "strings"

// Code is one entry of the closed set of wage-category codes.
type Code struct {
	Code    string `json:"codigo"`
	Meaning string `json:"significado"`
}

// codes lists the category codes in the order the decree publishes them.
var codes = []Code{
	{"TONC", "Trabajador en Ocupación No Calificada"},
	{"TOSC", "Trabajador en Ocupación Semicalificada"},
	{"TOC", "Trabajador en Ocupación Calificada"},
	{"TOE", "Trabajador en Ocupación Especializada"},
	{"TES", "Trabajador de Especialización Superior"},
	{"TONCG", "Trabajador en Ocupación No Calificada (Genérico)"},
	{"TOSCG", "Trabajador en Ocupación Semicalificada (Genérico)"},
	{"TOCG", "Trabajador en Ocupación Calificada (Genérico)"},
	{"TMED", "Técnico Medio en Educación Diversificada"},
	{"TOEG", "Trabajador en Ocupación Especializada (Genérico)"},
	{"TEdS", "Técnico de Educación Superior"},
	{"DES", "Diplomado de Educación Superior"},
	{"Bach", "Bachiller Universitario"},
	{"Lic", "Licenciado Universitario"},
}

// Vocabulary validates candidate codes against the controlled code set.
// Matching is exact and case-sensitive after trimming surrounding whitespace.
type Vocabulary struct {
	byCode map[string]Code
	order  []Code
}

// DefaultVocabulary returns the vocabulary used by the published salary decree.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(codes)
}

// NewVocabulary builds a vocabulary from the given entries.
func NewVocabulary(entries []Code) *Vocabulary {
	v := &Vocabulary{
		byCode: make(map[string]Code, len(entries)),
		order:  make([]Code, 0, len(entries)),
	}
	for _, e := range entries {
		if _, dup := v.byCode[e.Code]; dup {
			continue
		}
		v.byCode[e.Code] = e
		v.order = append(v.order, e)
	}
	return v
}

// IsValid reports whether raw, once trimmed, is exactly a known code.
func (v *Vocabulary) IsValid(raw string) bool {
	_, ok := v.byCode[strings.TrimSpace(raw)]
	return ok
}

// Describe returns the meaning of a code, or the code itself when unknown.
func (v *Vocabulary) Describe(code string) string {
	if c, ok := v.byCode[code]; ok {
		return c.Meaning
	}
	return code
}

// Codes returns the entries in publication order.
func (v *Vocabulary) Codes() []Code {
	out := make([]Code, len(v.order))
	copy(out, v.order)
	return out
}

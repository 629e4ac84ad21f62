package ingest

import "strings"

// Flag derivation is a lossy heuristic over free-text cells. Operators write
// anything from "SI" to "se envió oficio el martes" in these columns, so we
// accept a fixed affirmative token set plus keyword substrings. False
// negatives are expected and tolerated; the record view lets staff correct
// the flag by hand.

var affirmativeTokens = map[string]struct{}{
	"YES":  {},
	"SI":   {},
	"SÍ":   {},
	"X":    {},
	"1":    {},
	"TRUE": {},
	"OK":   {},
	"DONE": {},
}

var supportKeywords = []string{"APOYO", "SOLICIT"}

var letterKeywords = []string{"CARTA", "ENVIAD", "OFICIO", "HECHO"}

// DeriveSupportFlag reports whether a free-text cell indicates support was
// requested.
func DeriveSupportFlag(raw string) bool {
	return deriveFlag(raw, supportKeywords)
}

// DeriveLetterFlag reports whether a free-text cell indicates a letter or
// official communication went out.
func DeriveLetterFlag(raw string) bool {
	return deriveFlag(raw, letterKeywords)
}

func deriveFlag(raw string, keywords []string) bool {
	text := strings.ToUpper(strings.TrimSpace(raw))
	if text == "" {
		return false
	}
	if _, ok := affirmativeTokens[text]; ok {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

package questionbank

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type replacement struct {
	re   *regexp.Regexp
	with string
}

// longer terms come first so "paroxysmal nocturnal dyspnea" wins over "dyspnea"
var friendlyTerms = func() []replacement {
	pairs := [][2]string{
		{"paroxysmal nocturnal dyspnea", "suddenly waking up gasping for air"},
		{"orthopnea", "difficulty breathing when lying down"},
		{"dyspnea", "shortness of breath"},
		{"palpitations", "heart racing or irregular heartbeat"},
		{"syncope", "fainting or losing consciousness"},
		{"diaphoresis", "sweating"},
		{"hemoptysis", "coughing up blood"},
		{"oliguria", "decreased urination"},
		{"nocturia", "frequent nighttime urination"},
		{"bradycardia", "slow heart rate"},
		{"tachycardia", "fast heart rate"},
	}
	out := make([]replacement, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, replacement{
			re:   regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p[0])),
			with: p[1],
		})
	}
	return out
}()

// MakePatientFriendly swaps clinical vocabulary for plain wording and
// capitalizes the first letter. Only for display.
func MakePatientFriendly(question string) string {
	out := question
	for _, r := range friendlyTerms {
		out = r.re.ReplaceAllLiteralString(out, r.with)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return out
	}
	first, size := utf8.DecodeRuneInString(out)
	return string(unicode.ToUpper(first)) + out[size:]
}

package agent

import "regexp"

// ClarificationMessage is the fixed reply for questions carrying a
// day/month date without an explicit four-digit year.
const ClarificationMessage = "Sua pergunta contém uma data sem o ano (por exemplo, '18/09'). " +
	"Para evitar ambiguidade, por favor repita a pergunta informando o ano completo (por exemplo, '18/09/2024')."

// dmPattern matches dd/mm with an optional year group.
var dmPattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)

// HasAmbiguousDate reports whether the question contains a day/month
// date whose year is missing or written with only two digits. Such
// questions are rejected before the planner runs.
func HasAmbiguousDate(question string) bool {
	for _, m := range dmPattern.FindAllStringSubmatch(question, -1) {
		year := m[3]
		if len(year) != 4 {
			return true
		}
	}
	return false
}

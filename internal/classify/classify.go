// Package classify turns free model text into the closed signals the router
// predicates operate on. It is the only place that inspects model wording
// for control flow.
//
// Ambiguous text never fails: it maps to the conservative branch, which is
// "keep generating" for code need and validation and "no" for AutoML.
package classify

import (
	"regexp"
	"strings"

	"github.com/aretw0/dsflow/pkg/domain"
)

var punctuation = strings.NewReplacer(
	"_", " ", "-", " ", "*", " ", "`", " ", "\"", " ", "'", " ",
	".", " ", ",", " ", "!", " ", ":", " ", ";", " ", "\n", " ", "\t", " ",
)

// normalize upper-cases text and reduces it to space separated words.
func normalize(text string) []string {
	return strings.Fields(punctuation.Replace(strings.ToUpper(text)))
}

func hasWord(words []string, want ...string) bool {
	for _, w := range words {
		for _, t := range want {
			if w == t {
				return true
			}
		}
	}
	return false
}

// CodeNeed classifies the Code-Need Router reply.
func CodeNeed(text string) domain.CodeNeed {
	words := normalize(text)
	yes := hasWord(words, "YES")
	no := hasWord(words, "NO")
	if no && !yes {
		return domain.CodeNotRequired
	}
	return domain.CodeRequired
}

// AutoML classifies the AutoML Router reply.
func AutoML(text string) domain.AutoMLChoice {
	words := normalize(text)
	lama := hasWord(words, "LAMA", "LIGHTAUTOML")
	fedot := hasWord(words, "FEDOT")
	switch {
	case lama && !fedot:
		return domain.AutoMLLightAutoML
	case fedot && !lama:
		return domain.AutoMLFedot
	default:
		return domain.AutoMLNone
	}
}

// Verdict classifies the Validator reply. The earliest recognized signal
// wins; unrecognized text maps to VerdictWrong.
func Verdict(text string) domain.Verdict {
	words := normalize(text)
	for i, w := range words {
		switch w {
		case "WRONG":
			return domain.VerdictWrong
		case "VALID":
			if i+1 < len(words) {
				switch words[i+1] {
				case "NO":
					return domain.VerdictValidNo
				case "YES":
					return domain.VerdictValidYes
				}
			}
		}
	}
	return domain.VerdictWrong
}

var errorSignatures = []string{
	"Traceback (most recent call last):",
	"An error occurred during code execution",
	"Code exceeded execution time",
	"execution failed:",
}

var exceptionName = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]*(Error|Exception)\b:`)

// HasErrorSignature reports whether an execution output carries a known
// error marker: a traceback header, the failure framing, or an exception
// name followed by a colon.
func HasErrorSignature(text string) bool {
	for _, sig := range errorSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return exceptionName.MatchString(text)
}

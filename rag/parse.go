package rag

import (
	"strings"
)

// ParseQuestions splits model output into questions, one per non-blank line,
// dropping preamble lines such as "Here are 5 questions:". It does not check
// the count or remove duplicates.
func ParseQuestions(output string) []string {
	lines := strings.Split(output, "\n")
	questions := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || isPreamble(line) {
			continue
		}
		questions = append(questions, line)
	}
	return questions
}

func isPreamble(line string) bool {
	return strings.HasPrefix(line, "Here are") || strings.HasPrefix(line, "Here is")
}

// ParseValidation reads the Verdict and Feedback lines from model output. It
// never fails: output without a recognisable verdict yields Unknown, and
// output without a Feedback line uses the whole trimmed output as feedback.
func ParseValidation(output string) Validation {
	raw := strings.TrimSpace(output)
	v := Validation{Verdict: Unknown, Raw: raw}

	var feedback []string
	inFeedback := false
	for _, line := range strings.Split(raw, "\n") {
		clean := cleanLine(line)
		if value, ok := cutLabel(clean, "verdict"); ok {
			inFeedback = false
			if v.Verdict == Unknown {
				v.Verdict = parseVerdict(value)
			}
			continue
		}
		if value, ok := cutLabel(clean, "feedback"); ok {
			inFeedback = true
			if value != "" {
				feedback = append(feedback, value)
			}
			continue
		}
		if inFeedback && clean != "" {
			feedback = append(feedback, clean)
		}
	}

	if len(feedback) > 0 {
		v.Feedback = strings.Join(feedback, " ")
	} else {
		v.Feedback = raw
	}
	return v
}

// cleanLine drops markdown emphasis and surrounding whitespace.
func cleanLine(line string) string {
	line = strings.ReplaceAll(line, "**", "")
	line = strings.ReplaceAll(line, "__", "")
	return strings.TrimSpace(line)
}

func cutLabel(line, label string) (string, bool) {
	if len(line) < len(label) || !strings.EqualFold(line[:len(label)], label) {
		return "", false
	}
	rest := strings.TrimSpace(line[len(label):])
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(rest, ":")), true
}

func parseVerdict(value string) Verdict {
	value = strings.Trim(value, "[]\"'*. ")
	word := strings.ToLower(value)
	if i := strings.IndexAny(word, " \t,.;!"); i >= 0 {
		word = word[:i]
	}
	switch word {
	case "correct":
		return Correct
	case "incorrect":
		return Incorrect
	default:
		return Unknown
	}
}

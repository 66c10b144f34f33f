package conditions

import (
	"regexp"
	"strings"
)

// trimStartFold strips every leading occurrence of prefix, ignoring case
// and surrounding whitespace.
func trimStartFold(input, prefix string) string {
	upperPrefix := strings.ToUpper(prefix)
	for {
		input = strings.TrimLeft(input, " \t")
		if !strings.HasPrefix(strings.ToUpper(input), upperPrefix) {
			return input
		}
		input = input[len(prefix):]
	}
}

// CombineConditionString joins multiple condition strings into a single
// expression, parenthesizing each one.
func CombineConditionString(input []string) string {
	if len(input) == 1 {
		return input[0]
	}

	var value strings.Builder
	for i := range input {
		value.WriteString("(")
		value.WriteString(input[i])
		value.WriteString(")")
		if i != len(input)-1 {
			value.WriteString(" AND ")
		}
	}
	return value.String()
}

// splitOnce splits input at the first match of re, keeping the separator
// on the right side.
func splitOnce(re *regexp.Regexp, input string) (string, string, bool) {
	loc := re.FindStringIndex(input)
	if loc == nil {
		return input, "", false
	}
	return input[:loc[0]], input[loc[0]:], true
}

// findBrackets returns the positions of every target byte that is not
// part of an array literal (preceded by '[').
func findBrackets(input string, target byte) []int {
	var positions []int
	for i := 0; i < len(input); i++ {
		if input[i] == target && (i == 0 || input[i-1] != '[') {
			positions = append(positions, i)
		}
	}
	return positions
}

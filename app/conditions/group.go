package conditions

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Keyword int

const (
	KeywordSingular Keyword = iota
	KeywordAnd
	KeywordOr
)

var (
	findAnds = regexp.MustCompile(`(?i)\sand\s`)
	findOrs  = regexp.MustCompile(`(?i)\sor\s`)
)

// ConditionalGroup is a binary tree node joining conditionals or nested
// groups with AND/OR. GroupedLogical records bracket nesting depth;
// deeper groups evaluate before their siblings.
type ConditionalGroup struct {
	Keyword Keyword

	LeftConditional  *Conditional
	RightConditional *Conditional

	LeftGroup  *ConditionalGroup
	RightGroup *ConditionalGroup

	GroupedLogical int
}

func (g *ConditionalGroup) LeftIsSet() bool {
	return g.LeftGroup != nil || g.LeftConditional != nil
}

func (g *ConditionalGroup) RightIsSet() bool {
	return g.RightGroup != nil || g.RightConditional != nil
}

func (g *ConditionalGroup) set(left, right string, keyword Keyword) error {
	g.Keyword = keyword
	if left != "" {
		if findAnds.MatchString(left) || findOrs.MatchString(left) {
			leftGroup, err := createGroup(left, g.GroupedLogical)
			if err != nil {
				return err
			}
			g.LeftGroup = leftGroup
		} else {
			leftConditional, err := CreateConditional(left)
			if err != nil {
				return err
			}
			g.LeftConditional = leftConditional
		}
	}
	if right != "" {
		if findAnds.MatchString(right) || findOrs.MatchString(right) || len(findBrackets(right, '(')) > 0 {
			rightGroup, err := createGroup(right, g.GroupedLogical)
			if err != nil {
				return err
			}
			g.RightGroup = rightGroup
		} else {
			rightConditional, err := CreateConditional(right)
			if err != nil {
				return err
			}
			g.RightConditional = rightConditional
		}
	}
	return nil
}

func (g *ConditionalGroup) parse(input string, groupedLogicalParent int) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("empty input")
	}

	openBrackets := findBrackets(input, '(')
	closeBrackets := findBrackets(input, ')')
	if g.GroupedLogical > 1 && len(openBrackets) != len(closeBrackets) {
		return errors.New("matching brackets missing")
	}

	if len(openBrackets) >= 1 && openBrackets[0] == 0 {
		g.GroupedLogical = groupedLogicalParent + 1
		input = strings.Trim(input, "(")
		openBrackets = findBrackets(input, '(')
	}

	foundAnds := findAnds.FindAllStringIndex(input, -1)
	foundOrs := findOrs.FindAllStringIndex(input, -1)

	if len(foundAnds) == 1 && len(foundOrs) == 0 && len(openBrackets) == 0 {
		left, right, _ := splitOnce(findAnds, input)
		return g.set(left, trimStartFold(right, AND), KeywordAnd)
	}
	if len(foundAnds) == 0 && len(foundOrs) == 1 && len(openBrackets) == 0 {
		left, right, _ := splitOnce(findOrs, input)
		return g.set(left, trimStartFold(right, OR), KeywordOr)
	}
	if len(foundAnds) == 0 && len(foundOrs) == 0 {
		return g.set(input, "", KeywordSingular)
	}

	return g.parseComplex(input)
}

// parseComplex handles inputs holding several keywords or bracketed
// sub-expressions. Without brackets the split happens at the earliest
// keyword: evaluation is left to right, AND binding no tighter than OR.
func (g *ConditionalGroup) parseComplex(input string) error {
	openBrackets := findBrackets(input, '(')
	if len(openBrackets) > 0 {
		return g.parseBrackets(input)
	}

	andLoc := findAnds.FindStringIndex(input)
	orLoc := findOrs.FindStringIndex(input)

	if orLoc != nil && (andLoc == nil || andLoc[0] > orLoc[0]) {
		left, right, _ := splitOnce(findOrs, input)
		if left == "" || strings.TrimSpace(right) == "" {
			return fmt.Errorf("error parsing OR condition in: %s", input)
		}
		return g.set(left, trimStartFold(right, OR), KeywordOr)
	}

	left, right, _ := splitOnce(findAnds, input)
	if left == "" || strings.TrimSpace(right) == "" {
		return fmt.Errorf("error parsing AND condition in: %s", input)
	}
	return g.set(left, trimStartFold(right, AND), KeywordAnd)
}

// parseBrackets splits around the first bracketed sub-expression. A
// keyword occurring before the first bracket splits there instead.
func (g *ConditionalGroup) parseBrackets(input string) error {
	openBrackets := findBrackets(input, '(')
	closeBrackets := findBrackets(input, ')')
	if len(openBrackets) == 0 || len(closeBrackets) == 0 {
		return errors.New("expected bracket: bracket not found")
	}

	foundAnds := findAnds.FindStringIndex(input)
	foundOrs := findOrs.FindStringIndex(input)

	keywordBeforeBracket := (foundAnds != nil && foundAnds[0] < openBrackets[0]) ||
		(foundOrs != nil && foundOrs[0] < openBrackets[0])
	if keywordBeforeBracket {
		if foundOrs == nil || (foundAnds != nil && foundAnds[0] < foundOrs[0]) {
			left, right, _ := splitOnce(findAnds, input)
			return g.set(left, trimStartFold(right, AND), KeywordAnd)
		}
		left, right, _ := splitOnce(findOrs, input)
		return g.set(left, trimStartFold(right, OR), KeywordOr)
	}

	// the group opens the input; its leading bracket was trimmed by parse,
	// so the first closing bracket ends it
	closeIdx := closeBrackets[0]
	left := input[:closeIdx]
	rest := strings.TrimLeft(input[closeIdx+1:], " \t")

	var keyword Keyword
	switch {
	case strings.HasPrefix(strings.ToUpper(rest), AND+" "), strings.HasPrefix(strings.ToUpper(rest), AND+"("):
		keyword = KeywordAnd
		rest = trimStartFold(rest, AND)
	case strings.HasPrefix(strings.ToUpper(rest), OR+" "), strings.HasPrefix(strings.ToUpper(rest), OR+"("):
		keyword = KeywordOr
		rest = trimStartFold(rest, OR)
	default:
		return fmt.Errorf("expected AND or OR after bracketed group in: %s", input)
	}

	g.Keyword = keyword
	leftGroup, err := createGroup(left, g.GroupedLogical)
	if err != nil {
		return err
	}
	g.LeftGroup = leftGroup

	rightGroup, err := createGroup(rest, g.GroupedLogical)
	if err != nil {
		return err
	}
	g.RightGroup = rightGroup
	return nil
}

// Create parses a full boolean expression into a group tree.
func Create(input string) (*ConditionalGroup, error) {
	return createGroup(input, 0)
}

func createGroup(input string, groupedLogicalParent int) (*ConditionalGroup, error) {
	if input == "" {
		return nil, errors.New("empty input")
	}
	group := &ConditionalGroup{Keyword: KeywordSingular, GroupedLogical: 1}
	if groupedLogicalParent == 0 {
		trimmed, err := trimStartingBrackets(input)
		if err != nil {
			return nil, err
		}
		input = trimmed
	}
	if err := group.parse(strings.TrimSpace(input), groupedLogicalParent); err != nil {
		return nil, err
	}
	return group, nil
}

// trimStartingBrackets removes a single bracket pair spanning the whole
// input, and rejects unbalanced brackets up front.
func trimStartingBrackets(input string) (string, error) {
	openBrackets := findBrackets(input, '(')
	closeBrackets := findBrackets(input, ')')

	if len(openBrackets) != len(closeBrackets) {
		return "", errors.New("matching brackets missing")
	}

	if len(openBrackets) == 1 && openBrackets[0] == 0 && closeBrackets[0] == len(input)-1 {
		input = strings.TrimPrefix(input, "(")
		input = strings.TrimSuffix(input, ")")
	}
	return input, nil
}

func (g *ConditionalGroup) Evaluate() (bool, error) {
	switch g.Keyword {
	case KeywordAnd:
		return g.evaluateAnds()
	case KeywordOr:
		return g.evaluateOrs()
	}
	if g.LeftConditional != nil && !g.RightIsSet() {
		return g.LeftConditional.Evaluate()
	}
	return false, errors.New("evaluation error")
}

func (g *ConditionalGroup) evaluateOrs() (bool, error) {
	// a more deeply nested right group evaluates first
	if g.RightGroup != nil && g.RightGroup.GroupedLogical > g.GroupedLogical {
		right, err := g.RightGroup.Evaluate()
		if err != nil {
			return false, err
		}
		left, err := g.evaluateLeft()
		if err != nil {
			return false, err
		}
		return right || left, nil
	}

	left, err := g.evaluateLeft()
	if err != nil {
		return false, err
	}
	right, err := g.evaluateRight()
	if err != nil {
		return false, err
	}
	return left || right, nil
}

func (g *ConditionalGroup) evaluateAnds() (bool, error) {
	if g.RightGroup != nil && g.RightGroup.GroupedLogical > g.GroupedLogical {
		right, err := g.RightGroup.Evaluate()
		if err != nil {
			return false, err
		}
		left, err := g.evaluateLeft()
		if err != nil {
			return false, err
		}
		return right && left, nil
	}

	left, err := g.evaluateLeft()
	if err != nil {
		return false, err
	}
	right, err := g.evaluateRight()
	if err != nil {
		return false, err
	}
	return left && right, nil
}

func (g *ConditionalGroup) evaluateLeft() (bool, error) {
	if g.LeftConditional != nil {
		return g.LeftConditional.Evaluate()
	}
	if g.LeftGroup != nil {
		return g.LeftGroup.Evaluate()
	}
	return false, errors.New("evaluation error: left side not set")
}

func (g *ConditionalGroup) evaluateRight() (bool, error) {
	if g.RightConditional != nil {
		return g.RightConditional.Evaluate()
	}
	if g.RightGroup != nil {
		return g.RightGroup.Evaluate()
	}
	return false, errors.New("evaluation error: right side not set")
}

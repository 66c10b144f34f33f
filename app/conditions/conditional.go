package conditions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	CONTAINS     = "CONTAINS"
	NOT_CONTAINS = "NOT_CONTAINS"

	EQUAL_EQUALS = "=="
	NOT_EQUAL    = "!="
	GT           = ">"
	LT           = "<"
	GE           = ">="
	EG           = "=>"
	LE           = "<="
	EL           = "=<"

	NULL      = "NULL"
	UNDEFINED = "UNDEFINED"

	AND = "AND"
	OR  = "OR"
)

// Conditional is a single two-operand comparison. Operands are scalars,
// comma-joined arrays, or the NULL sentinel.
type Conditional struct {
	LogicalOperator string

	LeftParameter        string
	LeftParameterIsArray bool

	RightParameter        string
	RightParameterIsArray bool
}

// setNextParameter fills left then right. Whitespace-only values collapse
// to the NULL sentinel. A third operand is a syntax error.
func (c *Conditional) setNextParameter(value string, isArrayValue bool) error {
	if strings.TrimSpace(value) == "" {
		value = NULL
	}

	if c.LeftParameter == "" {
		c.LeftParameter = value
		c.LeftParameterIsArray = isArrayValue
		return nil
	}
	if c.RightParameter == "" {
		c.RightParameter = value
		c.RightParameterIsArray = isArrayValue
		return nil
	}
	return errors.New("all parameters set")
}

func (c *Conditional) setOperator(operator string) error {
	if c.LogicalOperator != "" {
		return fmt.Errorf("operator already set, second operator %q", operator)
	}
	c.LogicalOperator = operator
	return nil
}

// cursor is a position over the raw expression text.
type cursor struct {
	input string
	pos   int
}

func (cur *cursor) eof() bool {
	return cur.pos >= len(cur.input)
}

func (cur *cursor) current() byte {
	return cur.input[cur.pos]
}

func (cur *cursor) rest() string {
	return cur.input[cur.pos:]
}

// matchWord reports whether word appears at the cursor as a whole word,
// case-insensitive.
func (cur *cursor) matchWord(word string) bool {
	rest := cur.rest()
	if len(rest) < len(word) {
		return false
	}
	if !strings.EqualFold(rest[:len(word)], word) {
		return false
	}
	if len(rest) == len(word) {
		return true
	}
	next := rest[len(word)]
	return next == ' ' || next == '\t'
}

// Parse scans the expression character by character and fills the
// conditional's two operands and operator.
func (c *Conditional) Parse(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("empty input")
	}

	trimmed := strings.ToUpper(strings.TrimSpace(input))
	if strings.HasPrefix(trimmed, AND+" ") || strings.HasPrefix(trimmed, OR+" ") {
		return errors.New("no left hand parameter")
	}
	if strings.HasSuffix(trimmed, " "+AND) || strings.HasSuffix(trimmed, " "+OR) {
		return errors.New("no right hand parameter")
	}

	cur := &cursor{input: input}
	for !cur.eof() {
		if err := c.parseAt(cur); err != nil {
			return err
		}
	}

	if c.LeftParameter == "" && c.RightParameter == "" && c.LogicalOperator == "" {
		return fmt.Errorf("unable to parse %q", input)
	}
	if c.LogicalOperator == "" {
		return fmt.Errorf("no operator in %q", input)
	}
	if c.RightParameter == "" {
		return fmt.Errorf("no right hand parameter in %q", input)
	}
	if err := c.validateOrdering(); err != nil {
		return err
	}
	return nil
}

func (c *Conditional) parseAt(cur *cursor) error {
	// keyword operands and operators are matched before single characters
	switch {
	case cur.matchWord(NOT_CONTAINS):
		if err := c.setOperator(NOT_CONTAINS); err != nil {
			return err
		}
		cur.pos += len(NOT_CONTAINS)
		return nil
	case cur.matchWord(CONTAINS):
		if err := c.setOperator(CONTAINS); err != nil {
			return err
		}
		cur.pos += len(CONTAINS)
		return nil
	case cur.matchWord(NULL):
		cur.pos += len(NULL)
		return c.setNextParameter("", false)
	case cur.matchWord(UNDEFINED):
		cur.pos += len(UNDEFINED)
		return c.setNextParameter("", false)
	}

	currentChar := cur.current()
	nextIndex := cur.pos + 1

	switch currentChar {
	case '[':
		closing := strings.IndexByte(cur.input[nextIndex:], ']')
		if closing == -1 {
			return fmt.Errorf("matching closing bracket missing in %q", cur.input)
		}
		if err := c.setNextParameter(cur.input[nextIndex:nextIndex+closing], true); err != nil {
			return err
		}
		cur.pos = nextIndex + closing + 1
	case '{':
		closing := strings.Index(cur.input[nextIndex:], "}}")
		if closing == -1 {
			return fmt.Errorf("matching closing bracket missing in %q", cur.input)
		}
		if err := c.setNextParameter(cur.input[cur.pos:nextIndex+closing+2], false); err != nil {
			return err
		}
		cur.pos = nextIndex + closing + 2
	case '\'':
		closing := strings.IndexByte(cur.input[nextIndex:], '\'')
		if closing == -1 {
			return fmt.Errorf("matching closing quotation mark missing in %q", cur.input)
		}
		if err := c.setNextParameter(cur.input[nextIndex:nextIndex+closing], false); err != nil {
			return err
		}
		cur.pos = nextIndex + closing + 1
	case '!', '=':
		if nextIndex >= len(cur.input) {
			return fmt.Errorf("unexpected %q at end of %q", string(currentChar), cur.input)
		}
		nextChar := cur.input[nextIndex]
		if nextChar == '=' || nextChar == '>' || nextChar == '<' {
			if err := c.setOperator(string([]byte{currentChar, nextChar})); err != nil {
				return err
			}
			cur.pos += 2
		} else {
			cur.pos++
		}
	case '>', '<':
		operator := string(currentChar)
		if nextIndex < len(cur.input) && cur.input[nextIndex] == '=' {
			operator += "="
			cur.pos++
		}
		if err := c.setOperator(operator); err != nil {
			return err
		}
		cur.pos++
	default:
		cur.pos++
	}

	return nil
}

// validateOrdering rejects ordering comparisons where neither side is a
// number, so the failure surfaces at parse time rather than evaluation.
func (c *Conditional) validateOrdering() error {
	switch c.LogicalOperator {
	case GT, LT, GE, EG, LE, EL:
	default:
		return nil
	}
	_, leftErr := strconv.ParseFloat(strings.TrimSpace(c.LeftParameter), 64)
	_, rightErr := strconv.ParseFloat(strings.TrimSpace(c.RightParameter), 64)
	if leftErr != nil && rightErr != nil {
		return fmt.Errorf("operator %q requires a numeric parameter", c.LogicalOperator)
	}
	return nil
}

func CreateConditional(input string) (*Conditional, error) {
	if input == "" {
		return nil, errors.New("empty input")
	}
	conditional := &Conditional{}
	if err := conditional.Parse(strings.TrimSpace(input)); err != nil {
		return nil, err
	}
	return conditional, nil
}

func (c *Conditional) Evaluate() (bool, error) {
	switch c.LogicalOperator {
	case CONTAINS:
		return c.containsEvaluate(), nil
	case NOT_CONTAINS:
		return !c.containsEvaluate(), nil
	case EQUAL_EQUALS:
		return strings.EqualFold(c.LeftParameter, c.RightParameter), nil
	case NOT_EQUAL:
		return !strings.EqualFold(c.LeftParameter, c.RightParameter), nil
	case GT, LT, GE, EG, LE, EL:
		return c.compareEvaluate()
	default:
		return false, fmt.Errorf("invalid logical operator %q between parameters %q and %q",
			c.LogicalOperator, c.LeftParameter, c.RightParameter)
	}
}

func (c *Conditional) compareEvaluate() (bool, error) {
	left, err := strconv.ParseFloat(strings.TrimSpace(c.LeftParameter), 64)
	if err != nil {
		return false, fmt.Errorf("parameter %q is not a number", c.LeftParameter)
	}
	right, err := strconv.ParseFloat(strings.TrimSpace(c.RightParameter), 64)
	if err != nil {
		return false, fmt.Errorf("parameter %q is not a number", c.RightParameter)
	}

	switch c.LogicalOperator {
	case GT:
		return left > right, nil
	case LT:
		return left < right, nil
	case GE, EG:
		return left >= right, nil
	case LE, EL:
		return left <= right, nil
	}
	return false, fmt.Errorf("invalid logical operator %q", c.LogicalOperator)
}

func (c *Conditional) containsEvaluate() bool {
	var arr []string
	var compare string
	if c.LeftParameterIsArray {
		arr = strings.Split(c.LeftParameter, ",")
		compare = c.RightParameter
	} else {
		arr = strings.Split(c.RightParameter, ",")
		compare = c.LeftParameter
	}

	for i := range arr {
		trimmed := strings.TrimSpace(arr[i])
		if strings.EqualFold(trimmed, NULL) || strings.EqualFold(trimmed, UNDEFINED) {
			arr[i] = NULL
		}
	}

	for _, p := range arr {
		cleaned := strings.Trim(strings.TrimSpace(p), "\"'")
		if cleaned == compare {
			return true
		}
	}
	return false
}

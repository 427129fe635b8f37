package program

import (
	"regexp"
	"strings"

	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
)

var (
	ifRe     = regexp.MustCompile(`^if\s*\((.*)\)\s*\{$`)
	elseIfRe = regexp.MustCompile(`^else\s+if\s*\((.*)\)\s*\{$`)
	elseRe   = regexp.MustCompile(`^else\s*\{$`)
	returnRe = regexp.MustCompile(`^return\s+(.+)$`)
	assignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)\s*=\s*([^=].*)$`)
)

// Parse parses program text. Conditional headers must end in '{'; their
// bodies run to the matching close brace and are parsed recursively.
func Parse(src string) (*Program, error) {
	return parseLines(strings.Split(src, "\n"))
}

func parseLines(lines []string) (*Program, error) {
	prog := &Program{}

	// The slice is mutated when a close brace shares a line with the next
	// chain header ("} else {"), so work on a copy.
	lines = append([]string(nil), lines...)

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}

		if m := ifRe.FindStringSubmatch(line); m != nil {
			next, err := parseConditional(prog, lines, i, m[1], headerIf)
			if err != nil {
				return nil, err
			}
			i = next
			continue
		}
		if m := elseIfRe.FindStringSubmatch(line); m != nil {
			next, err := parseConditional(prog, lines, i, m[1], headerElseIf)
			if err != nil {
				return nil, err
			}
			i = next
			continue
		}
		if elseRe.MatchString(line) {
			next, err := parseConditional(prog, lines, i, "", headerElse)
			if err != nil {
				return nil, err
			}
			i = next
			continue
		}

		if m := returnRe.FindStringSubmatch(line); m != nil {
			expr, err := formula.Parse(m[1])
			if err != nil {
				return nil, err
			}
			prog.Lines = append(prog.Lines, &Return{Expr: expr})
			i++
			continue
		}

		if m := assignRe.FindStringSubmatch(line); m != nil {
			expr, err := formula.Parse(m[2])
			if err != nil {
				return nil, err
			}
			prog.Lines = append(prog.Lines, &Assignment{Target: m[1], Expr: expr})
			i++
			continue
		}

		expr, err := formula.Parse(line)
		if err != nil {
			return nil, err
		}
		prog.Lines = append(prog.Lines, &Statement{Expr: expr})
		i++
	}

	return prog, nil
}

type headerKind int

const (
	headerIf headerKind = iota
	headerElseIf
	headerElse
)

// parseConditional extracts the brace-delimited body starting after line i,
// parses it recursively, and appends the conditional line to prog. It
// returns the index of the first unconsumed line; when the close brace
// shares its line with the next chain header, that remainder is written back
// into the slice at the returned index.
func parseConditional(prog *Program, lines []string, i int, condSrc string, kind headerKind) (int, error) {
	var cond formula.Formula
	if kind != headerElse {
		var err error
		cond, err = formula.Parse(condSrc)
		if err != nil {
			return 0, err
		}
	}

	body, remainder, end, err := extractBody(lines, i)
	if err != nil {
		return 0, err
	}

	sub, err := parseLines(body)
	if err != nil {
		return 0, err
	}

	switch kind {
	case headerIf:
		prog.Lines = append(prog.Lines, &If{Cond: cond, Body: sub})
	case headerElseIf:
		prog.Lines = append(prog.Lines, &ElseIf{Cond: cond, Body: sub})
	case headerElse:
		prog.Lines = append(prog.Lines, &Else{Body: sub})
	}

	if remainder != "" {
		lines[end] = remainder
		return end, nil
	}
	return end + 1, nil
}

// extractBody scans forward from the header at lines[i] counting brace
// depth. It returns the body lines, any text remaining after the close
// brace, and the index of the line holding that brace. Reaching end of text
// first is an UnbalancedBraces error.
func extractBody(lines []string, i int) (body []string, remainder string, end int, err error) {
	depth := 1
	for j := i + 1; j < len(lines); j++ {
		for k := 0; k < len(lines[j]); k++ {
			switch lines[j][k] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					body = append(body, lines[i+1:j]...)
					body = append(body, lines[j][:k])
					remainder = strings.TrimSpace(lines[j][k+1:])
					return body, remainder, j, nil
				}
			}
		}
	}
	return nil, "", 0, diagnostic.Errorf(diagnostic.UnbalancedBraces, "missing '}' for block opened on line %d", i+1)
}

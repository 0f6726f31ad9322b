// Package protocol parses the line-oriented text commands exchanged with the
// authoring tool: command lines, bracketed name lists, and tagged transform
// strings.
package protocol

import (
	"strings"
)

// Command is one parsed request line.
type Command struct {
	// Verb is the first token, lowercased.
	Verb string
	// Args are the remaining tokens. Bracketed lists and "X=(...)" groups
	// are kept whole.
	Args []string
}

// ParseCommand splits a request line into a verb and arguments. Whitespace
// separates tokens except inside [...] and (...). Foreign names may carry
// stray brackets: a closing bracket outside any group is an ordinary
// character, and a group still open at the end of the line is split on
// whitespace as plain text.
//
// Postcondition: Returns a Command with an empty Verb for a blank line.
func ParseCommand(line string) Command {
	tokens := tokenize(strings.TrimSpace(line))
	if len(tokens) == 0 {
		return Command{}
	}
	return Command{
		Verb: strings.ToLower(tokens[0]),
		Args: tokens[1:],
	}
}

func tokenize(s string) []string {
	var (
		tokens []string
		cur    strings.Builder
		depth  int
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '[' || r == '(':
			depth++
		case (r == ']' || r == ')') && depth > 0:
			depth--
		case depth == 0 && (r == ' ' || r == '\t'):
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	if depth > 0 {
		tokens = append(tokens, strings.Fields(cur.String())...)
		return tokens
	}
	flush()
	return tokens
}

// ParseList turns "[a,b,c]" into its items. One enclosing bracket pair is
// removed; items are split on commas and trimmed of surrounding spaces.
// Empty items are kept so positions line up with a parallel list.
//
// Postcondition: "[]" and "" yield an empty, non-nil slice.
func ParseList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	items := strings.Split(s, ",")
	for i, it := range items {
		items[i] = strings.TrimSpace(it)
	}
	return items
}

// FormatList renders items as "[a,b,c]".
func FormatList(items []string) string {
	return "[" + strings.Join(items, ",") + "]"
}

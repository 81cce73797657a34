package naming

import (
	"strconv"
	"strings"
)

// A Name is a dot-separated series of tokens, such as
// "Device[0].Context.Stream[12]".
type Name struct {
	Tokens []Token
}

// Token is one element of a name, with optional bracketed indices.
type Token struct {
	Elem  string
	Index []int
}

// Parse splits a name string into tokens. It panics on malformed brackets or
// non-integer indices.
func Parse(s string) Name {
	parts := strings.Split(s, ".")
	n := Name{Tokens: make([]Token, len(parts))}

	for i, p := range parts {
		n.Tokens[i] = parseToken(p)
	}

	return n
}

func parseToken(s string) Token {
	bracketsMustMatch(s)

	parts := strings.Split(s, "[")
	t := Token{Elem: parts[0], Index: make([]int, 0, len(parts)-1)}

	for _, p := range parts[1:] {
		idx, err := strconv.Atoi(strings.TrimSuffix(p, "]"))
		if err != nil {
			panic("name index must be an integer")
		}

		t.Index = append(t.Index, idx)
	}

	return t
}

func bracketsMustMatch(s string) {
	depth := 0

	for _, c := range s {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				panic("name brackets must match")
			}
		}
	}

	if depth != 0 {
		panic("name brackets must match")
	}
}

// NameMustBeValid panics if the name does not follow the naming convention:
// non-empty CamelCase elements starting with a capital letter, separated by
// dots, with series elements indexed in square brackets.
func NameMustBeValid(name string) {
	defer func() {
		if r := recover(); r != nil {
			panic("name " + name + " is not valid: " + r.(string))
		}
	}()

	for _, t := range Parse(name).Tokens {
		tokenMustBeValid(t)
	}
}

func tokenMustBeValid(t Token) {
	if t.Elem == "" {
		panic("name element must not be empty")
	}

	if strings.ContainsAny(t.Elem, "_\"'- ") {
		panic("name element must not contain separators or quotes")
	}

	if t.Elem[0] < 'A' || t.Elem[0] > 'Z' {
		panic("name element must start with a capital letter")
	}
}

// Build joins a parent name and an element name.
func Build(parent, elem string) string {
	if parent == "" {
		return elem
	}

	return parent + "." + elem
}

// BuildWithIndex joins a parent name and an indexed element name.
func BuildWithIndex(parent, elem string, index int) string {
	return Build(parent, elem+"["+strconv.Itoa(index)+"]")
}

// IndexOf returns the first index of the last token named elem, or false if
// the name has no such indexed token.
func IndexOf(name, elem string) (int, bool) {
	tokens := Parse(name).Tokens

	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Elem == elem && len(tokens[i].Index) > 0 {
			return tokens[i].Index[0], true
		}
	}

	return 0, false
}

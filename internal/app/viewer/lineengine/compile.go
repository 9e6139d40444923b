// Package lineengine compiles a line-format template once at startup into a
// flat instruction list, then renders each record in a single pass over
// that list — it never re-scans its own output looking for more tags.
package lineengine

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemKind discriminates one compiled instruction.
type ItemKind int

const (
	// ItemLiteral emits a fixed run of text copied verbatim from the template.
	ItemLiteral ItemKind = iota
	// ItemField emits one record field, transformed and padded per the tag spec.
	ItemField
	// ItemStyle changes the active style; it emits no field text itself.
	ItemStyle
)

// StyleKind names which style a `{format:...}` tag switches to.
type StyleKind string

const (
	StyleEndpoint StyleKind = "endpoint"
	StyleWatch    StyleKind = "watch"
	StyleDefault  StyleKind = "default"
	StyleReset    StyleKind = "reset"
)

// Item is one compiled instruction in a template's rendering program.
type Item struct {
	Kind    ItemKind
	Literal string

	// Field tag state.
	Field       string
	Width       int
	ZeroPad     bool
	LeftAlign   bool
	Uppercase   bool
	Lowercase   bool
	Superscript bool
	Subscript   bool

	// Style tag state.
	Style StyleKind
	Plain bool
}

// Compile parses a template into a flat instruction list.
//
// Tag grammar is `{name}` or `{name:param}`. `name == "format"` is a style
// tag whose param is one of endpoint/watch/default/reset, optionally
// suffixed ",plain". Any other name is a field tag whose param is a spec
// string: an optional sequence of flags (^ superscript, _ subscript,
// A uppercase, a lowercase, < left-align, > right-align, 0 zero-pad)
// followed by an optional decimal width.
func Compile(template string) ([]Item, error) {
	var items []Item

	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			items = append(items, Item{Kind: ItemLiteral, Literal: literal.String()})
			literal.Reset()
		}
	}

	runes := []rune(template)

	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '{':
			close := indexRune(runes, i+1, '}')
			if close == -1 {
				return nil, fmt.Errorf("unterminated tag starting at offset %d", i)
			}

			flush()

			item, err := compileTag(string(runes[i+1 : close]))
			if err != nil {
				return nil, err
			}

			items = append(items, item)
			i = close

		case '}':
			return nil, fmt.Errorf("unmatched '}' at offset %d", i)

		default:
			literal.WriteRune(runes[i])
		}
	}

	flush()

	return items, nil
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}

	return -1
}

func compileTag(tag string) (Item, error) {
	name, param, hasParam := strings.Cut(tag, ":")

	if name == "format" {
		return compileStyleTag(param, hasParam, tag)
	}

	item := Item{Kind: ItemField, Field: name}
	if !hasParam {
		return item, nil
	}

	if err := applyFieldSpec(&item, param); err != nil {
		return Item{}, fmt.Errorf("invalid format spec %q in tag {%s}", param, tag)
	}

	return item, nil
}

func compileStyleTag(param string, hasParam bool, tag string) (Item, error) {
	if !hasParam {
		return Item{}, fmt.Errorf("style tag {%s} missing a style name", tag)
	}

	parts := strings.Split(param, ",")

	kind := StyleKind(strings.TrimSpace(parts[0]))
	switch kind {
	case StyleEndpoint, StyleWatch, StyleDefault, StyleReset:
	default:
		return Item{}, fmt.Errorf("unknown style %q in tag {%s}", parts[0], tag)
	}

	item := Item{Kind: ItemStyle, Style: kind}

	for _, flag := range parts[1:] {
		if strings.TrimSpace(flag) == "plain" {
			item.Plain = true
		}
	}

	return item, nil
}

// applyFieldSpec walks spec left to right: flag characters first, then a
// trailing run of digits is the width.
func applyFieldSpec(item *Item, spec string) error {
	runes := []rune(spec)

	i := 0
	for ; i < len(runes); i++ {
		switch runes[i] {
		case '^':
			item.Superscript = true
		case '_':
			item.Subscript = true
		case 'A':
			item.Uppercase = true
		case 'a':
			item.Lowercase = true
		case '<':
			item.LeftAlign = true
		case '>':
			item.LeftAlign = false
		case '0':
			item.ZeroPad = true
		default:
			goto width
		}
	}

width:
	if i == len(runes) {
		return nil
	}

	width, err := strconv.Atoi(string(runes[i:]))
	if err != nil {
		return err
	}

	item.Width = width

	return nil
}

package lineengine

import (
	"strconv"
	"strings"

	"logwatch/internal/app/wire"
)

// superDigits/subDigits map ASCII digits to their Unicode super/subscript
// equivalents — the only characters a field value's digit run is remapped to.
var superDigits = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴',
	'5': '⁵', '6': '⁶', '7': '⁷', '8': '⁸', '9': '⁹',
}

var subDigits = map[rune]rune{
	'0': '₀', '1': '₁', '2': '₂', '3': '₃', '4': '₄',
	'5': '₅', '6': '₆', '7': '₇', '8': '₈', '9': '₉',
}

// MatchContext carries the per-record watch-match outcome the renderer
// needs to resolve USE_WATCH / USE_DEFAULT style tags.
type MatchContext struct {
	WatchRegister string
	Matched       bool
}

// Engine renders wire.DataRecord values through a compiled template.
type Engine struct {
	items  []Item
	styles *StyleTable
}

// New compiles template into an Engine bound to the given style table.
func New(template string, styles *StyleTable) (*Engine, error) {
	items, err := Compile(template)
	if err != nil {
		return nil, err
	}

	return &Engine{items: items, styles: styles}, nil
}

// Render produces the formatted line for one data record, given the watch
// match (if any) found for that record by the caller.
func (e *Engine) Render(rec wire.DataRecord, match MatchContext) string {
	var b strings.Builder

	active := Reset
	plain := false

	b.WriteString(FullReset)

	for _, item := range e.items {
		switch item.Kind {
		case ItemLiteral:
			b.WriteString(item.Literal)

		case ItemStyle:
			active, plain = e.resolveStyle(item, rec, match)
			b.WriteString(Escape(active))

		case ItemField:
			b.WriteString(renderField(item, resolveField(item.Field, rec), active, plain))
		}
	}

	b.WriteString(ClearToEOL)
	b.WriteString(FullReset)

	return b.String()
}

func (e *Engine) resolveStyle(item Item, rec wire.DataRecord, match MatchContext) (Style, bool) {
	switch item.Style {
	case StyleReset:
		return Reset, item.Plain

	case StyleWatch:
		if match.Matched {
			if s, ok := e.styles.Watch(match.WatchRegister); ok {
				return s, item.Plain
			}
		}

		return Reset, item.Plain

	case StyleEndpoint:
		if s, ok := e.styles.Endpoint(rec.Endpoint, string(rec.FD)); ok {
			return s, item.Plain
		}

		return Reset, item.Plain

	case StyleDefault:
		if match.Matched {
			if s, ok := e.styles.Watch(match.WatchRegister); ok {
				return s, item.Plain
			}
		}

		if s, ok := e.styles.Endpoint(rec.Endpoint, string(rec.FD)); ok {
			return s, item.Plain
		}

		return Reset, item.Plain

	default:
		return Reset, item.Plain
	}
}

func resolveField(name string, rec wire.DataRecord) string {
	switch name {
	case "endpoint":
		return rec.Endpoint
	case "fd":
		return string(rec.FD)
	case "data":
		return rec.Data
	case "date":
		return rec.Date
	case "time":
		return rec.Time
	case "seq":
		return strconv.FormatUint(rec.Seq, 10)
	default:
		return ""
	}
}

func renderField(item Item, value string, active Style, plain bool) string {
	if plain {
		value = StripANSI(value)
	} else {
		value = ReassertAfterReset(value, active)
	}

	value = applyTransforms(item, value)

	return pad(value, item.Width, item.LeftAlign, item.ZeroPad)
}

func applyTransforms(item Item, value string) string {
	if item.Uppercase {
		value = strings.ToUpper(value)
	}

	if item.Lowercase {
		value = strings.ToLower(value)
	}

	if item.Superscript {
		value = mapDigits(value, superDigits)
	}

	if item.Subscript {
		value = mapDigits(value, subDigits)
	}

	return value
}

func mapDigits(value string, table map[rune]rune) string {
	out := make([]rune, 0, len(value))

	for _, r := range value {
		if mapped, ok := table[r]; ok {
			out = append(out, mapped)
		} else {
			out = append(out, r)
		}
	}

	return string(out)
}

func pad(value string, width int, leftAlign, zeroPad bool) string {
	if width <= 0 {
		return value
	}

	visLen := VisibleWidth(value)
	if visLen >= width {
		return value
	}

	padChar := " "
	if zeroPad && !leftAlign {
		padChar = "0"
	}

	padding := strings.Repeat(padChar, width-visLen)
	if leftAlign {
		return value + padding
	}

	return padding + value
}

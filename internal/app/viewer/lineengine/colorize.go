package lineengine

import (
	"regexp"
	"strconv"
	"strings"

	"logwatch/internal/config"
)

// Color is an xterm 256-palette index, or ColorNone meaning "inherit/none".
type Color int

const ColorNone Color = -1

// DefaultForeground is the reset style's foreground (white, xterm 231).
const DefaultForeground Color = 231

// Style is a background/foreground color pair.
type Style struct {
	Background Color
	Foreground Color
}

// Reset is the style used when nothing more specific applies.
var Reset = Style{Background: ColorNone, Foreground: DefaultForeground}

// StyleTable resolves endpoint and watch styles with fallback to a
// per-target "default" fd key, per the two-level style dictionary.
type StyleTable struct {
	endpoints map[string]map[string]Style // target -> fd ("" = default) -> style
	watches   map[string]Style            // watch register -> style
}

// NewStyleTable builds a StyleTable from the view's configured style nodes.
// A node with an empty FD is the fallback entry for that target; a node
// whose Target is in watchRegisters is stored only as that watch register's
// style (its FD is ignored) and is not reachable via endpoint lookup.
func NewStyleTable(nodes []config.StyleConfig, watchRegisters map[string]bool) *StyleTable {
	t := &StyleTable{
		endpoints: make(map[string]map[string]Style),
		watches:   make(map[string]Style),
	}

	for _, n := range nodes {
		style := Style{Background: parseColor(n.Background), Foreground: parseColor(n.Foreground)}

		if watchRegisters[n.Target] {
			t.watches[n.Target] = style
			continue
		}

		if t.endpoints[n.Target] == nil {
			t.endpoints[n.Target] = make(map[string]Style)
		}

		t.endpoints[n.Target][n.FD] = style
	}

	return t
}

func parseColor(s string) Color {
	s = strings.TrimSpace(s)
	if s == "" {
		return ColorNone
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return ColorNone
	}

	return Color(n)
}

// Endpoint resolves the style registered for endpoint, keyed by fd, falling
// back to that endpoint's "default" entry, then Reset.
func (t *StyleTable) Endpoint(endpoint, fd string) (Style, bool) {
	byFD, ok := t.endpoints[endpoint]
	if !ok {
		return Reset, false
	}

	if s, ok := byFD[fd]; ok {
		return s, true
	}

	if s, ok := byFD[""]; ok {
		return s, true
	}

	return Reset, false
}

// Watch resolves the style registered for a watch register.
func (t *StyleTable) Watch(register string) (Style, bool) {
	s, ok := t.watches[register]
	return s, ok
}

// SetWatch registers or replaces the style for register. Used when a watch
// is created or edited interactively, since the style nodes loaded from
// config at construction time have no way to name a register that doesn't
// exist yet.
func (t *StyleTable) SetWatch(register string, style Style) {
	t.watches[register] = style
}

// ParseColor exposes the config-string color parser for callers (such as
// the interactive watch editor) building a Style outside of NewStyleTable.
func ParseColor(s string) Color {
	return parseColor(s)
}

// ansiSeq matches one CSI escape sequence, used both to strip embedded
// ANSI in "plain" mode and to detect embedded resets that need the active
// style re-asserted after them.
var ansiSeq = regexp.MustCompile("\x1b\\[[0-9;]*m")

// ansiReset matches specifically a full or partial SGR reset.
var ansiReset = regexp.MustCompile(`\x1b\[0?m|\x1b\[[0-9;]*;0m`)

// StripANSI removes every embedded escape sequence from s.
func StripANSI(s string) string {
	return ansiSeq.ReplaceAllString(s, "")
}

// ReassertAfterReset re-emits active's escape code after every embedded
// reset sequence in s, so a field value that resets color mid-string
// doesn't bleed past the style currently in effect.
func ReassertAfterReset(s string, active Style) string {
	if !ansiReset.MatchString(s) {
		return s
	}

	esc := Escape(active)

	return ansiReset.ReplaceAllString(s, "$0"+esc)
}

// Escape renders s as the SGR sequence that sets its background and
// foreground, per the "48;5;B;38;5;F" / "0;38;5;F" wire-compatible forms.
func Escape(s Style) string {
	if s.Background == ColorNone {
		return "\x1b[0;38;5;" + strconv.Itoa(int(s.Foreground)) + "m"
	}

	return "\x1b[48;5;" + strconv.Itoa(int(s.Background)) + ";38;5;" + strconv.Itoa(int(s.Foreground)) + "m"
}

// VisibleWidth counts runes, ignoring embedded ANSI escapes — used to
// compute padding against what the terminal actually draws.
func VisibleWidth(s string) int {
	return len([]rune(StripANSI(s)))
}

const (
	// ClearToEOL and FullReset terminate every rendered line so a
	// background color paints the remainder of the terminal row and
	// never bleeds into the next line.
	ClearToEOL = "\x1b[K"
	FullReset  = "\x1b[0m"
)

// Package viewer wires the TCP client, line engine, watch registry, hold
// buffer and interactive keymap into the cooperative terminal UI loop: read
// a key (non-blocking), update model, render, repeat.
package viewer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	xterm "github.com/charmbracelet/x/term"

	"logwatch/internal/app/viewer/client"
	"logwatch/internal/app/viewer/holdbuffer"
	"logwatch/internal/app/viewer/interactive"
	"logwatch/internal/app/viewer/lineengine"
	"logwatch/internal/app/viewer/watch"
	"logwatch/internal/app/wire"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

var (
	statusRunning = lipgloss.NewStyle().Background(lipgloss.Color("22")).Foreground(lipgloss.Color("231"))
	statusPaused  = lipgloss.NewStyle().Background(lipgloss.Color("94")).Foreground(lipgloss.Color("231"))
	statusMessage = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	editorBox     = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	editorCursor  = lipgloss.NewStyle().Background(lipgloss.Color("24")).Foreground(lipgloss.Color("231"))
)

// showAll, showFiltered and showNone are the per-endpoint display modes
// settable with &Rn/&Rf/&Ra, plus the legacy `filtered` boolean's default.
const (
	showAll      = "all"
	showFiltered = "filtered"
	showNone     = "none"
)

// Options configures one viewer session.
type Options struct {
	Addr                string
	LineFormat          string
	ContinuedLineFormat string
	MaxHeldLines        int
	DefaultEndpoint     string
	Styles              []config.StyleConfig

	// Filtered is the legacy boolean alias for a default show mode of
	// "filtered" rather than "all".
	Filtered bool
	// Show maps an endpoint name to its configured show mode.
	Show map[string]string
	// Commands pre-seeds command registers with a stdin payload.
	Commands map[string]string
}

// App is one running viewer session: a connection, a render pipeline and
// the interactive command state machine driving it.
type App struct {
	opts Options
	log  logger.Logger
	out  io.Writer

	conn *client.Client

	engine          *lineengine.Engine
	continuedEngine *lineengine.Engine
	watches         *watch.Registry
	styles          *lineengine.StyleTable

	hold *holdbuffer.Buffer

	keymap *interactive.Keymap
	state  *interactive.State

	paused          bool
	defaultEndpoint string
	statusLine      string

	// registerNames resolves a single-character endpoint register to its
	// name, learned opportunistically from keepalive records — show-mode
	// commands are register-addressed ("&Rn") but DataRecord.Endpoint and
	// showModes are both keyed by name.
	registerNames  map[string]string
	showModes      map[string]string
	globalFiltered bool

	commandRegisters map[string]string

	inputMode   bool
	inputPrompt string
	inputBuf    strings.Builder
	inputDone   func(string, bool) // (text, committed)

	editor *watchEditorState
}

// New builds an App from opts. The style table is built with no watch
// registers, so every configured style node is treated as an endpoint
// style; a watch gets a style only from the colors entered in the watch
// editor (StyleTable.SetWatch).
func New(opts Options, log logger.Logger) (*App, error) {
	watches := watch.NewRegistry()

	registers := make(map[string]bool)

	styles := lineengine.NewStyleTable(opts.Styles, registers)

	engine, err := lineengine.New(opts.LineFormat, styles)
	if err != nil {
		return nil, fmt.Errorf("compiling line format: %w", err)
	}

	continuedEngine, err := lineengine.New(opts.ContinuedLineFormat, styles)
	if err != nil {
		return nil, fmt.Errorf("compiling continued line format: %w", err)
	}

	showModes := make(map[string]string, len(opts.Show))
	for name, mode := range opts.Show {
		showModes[name] = mode
	}

	commandRegisters := make(map[string]string, len(opts.Commands))
	for reg, cmd := range opts.Commands {
		commandRegisters[reg] = cmd
	}

	return &App{
		opts:             opts,
		log:              log,
		out:              os.Stdout,
		conn:             client.New(opts.Addr, log),
		engine:           engine,
		continuedEngine:  continuedEngine,
		watches:          watches,
		styles:           styles,
		hold:             holdbuffer.New(opts.MaxHeldLines, holdbuffer.DropOldest),
		keymap:           interactive.NewKeymap(),
		defaultEndpoint:  opts.DefaultEndpoint,
		registerNames:    make(map[string]string),
		showModes:        showModes,
		globalFiltered:   opts.Filtered,
		commandRegisters: commandRegisters,
	}, nil
}

// Run connects to the server and drives the UI loop until ctx is cancelled
// or the user quits.
func (a *App) Run(ctx context.Context) error {
	a.state = a.keymap.NewState()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.conn.Run(ctx)

	_, restore := enterRawMode()
	defer restore()

	keys := readKeys(ctx, os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return nil

		case rec, ok := <-a.conn.Records():
			if !ok {
				return nil
			}

			a.handleRecord(rec)

		case key, ok := <-keys:
			if !ok {
				return nil
			}

			if a.handleKey(key) {
				cancel()
				return nil
			}
		}
	}
}

func (a *App) handleRecord(rec client.Record) {
	switch rec.Envelope.Type {
	case wire.TypeData:
		var data wire.DataRecord
		if err := wire.DecodeInto(rec.Frame, &data); err != nil {
			a.log.Warn().Err(err).Msg("malformed data record")
			return
		}

		a.renderData(data)

	case wire.TypeMarker:
		var marker wire.MarkerRecord
		if err := wire.DecodeInto(rec.Frame, &marker); err != nil {
			return
		}

		a.emit(fmt.Sprintf("--- %s ---", marker.Name))

	case wire.TypeKeepalive:
		var ka wire.KeepaliveRecord
		if err := wire.DecodeInto(rec.Frame, &ka); err != nil {
			return
		}

		for name, status := range ka.Actions {
			if status.Register != "" {
				a.registerNames[status.Register] = name
			}
		}

		a.statusLine = renderStatus(ka)
	}
}

func (a *App) renderData(data wire.DataRecord) {
	mode := a.showModeFor(data.Endpoint)
	if mode == showNone {
		return
	}

	match := lineengine.MatchContext{}

	for _, w := range a.watches.All() {
		if rendered, matched := w.Apply(data.Data); matched {
			data.Data = rendered
			match = lineengine.MatchContext{WatchRegister: w.Register, Matched: true}

			break
		}
	}

	if mode == showFiltered && !match.Matched {
		return
	}

	line := a.engine.Render(data, match)
	a.emit(line)
}

// showModeFor resolves the effective show mode for an endpoint name: a
// per-endpoint override set interactively or from config, falling back to
// the global default (itself "filtered" when the legacy boolean is set).
func (a *App) showModeFor(endpoint string) string {
	if mode, ok := a.showModes[endpoint]; ok {
		return mode
	}

	if a.globalFiltered {
		return showFiltered
	}

	return showAll
}

// setShowMode applies mode to the endpoint bound to register. The register
// may not have a known name yet (no keepalive observed it), in which case
// the mode is stored under the register itself as a best-effort stand-in —
// it takes effect once a data record for that literal name arrives, and is
// superseded once the register resolves and the command is re-issued.
func (a *App) setShowMode(register, mode string) {
	if name, ok := a.registerNames[register]; ok {
		a.showModes[name] = mode
		return
	}

	a.showModes[register] = mode
}

func (a *App) emit(line string) {
	if a.paused {
		a.hold.Push(line)
		return
	}

	fmt.Fprint(a.out, line, "\r\n")
}

// handleKey processes one keystroke, returning true when the user asked
// to quit.
func (a *App) handleKey(key rune) bool {
	if a.editor != nil {
		a.feedEditor(key)
		return false
	}

	if a.inputMode {
		a.feedInput(key)
		return false
	}

	dispatch, committed := a.state.Feed(key)
	if !committed {
		return false
	}

	return a.execute(dispatch)
}

func (a *App) execute(d interactive.Dispatch) bool {
	switch d.Command {
	case interactive.CmdPause:
		a.paused = true

	case interactive.CmdAnalysisPause:
		a.paused = true
		a.hold.SetPolicy(holdbuffer.DropNewest)

	case interactive.CmdResume:
		a.paused = false
		a.hold.SetPolicy(holdbuffer.DropOldest)

		for _, line := range a.hold.Lines() {
			fmt.Fprint(a.out, line, "\r\n")
		}

		a.hold.Clear()

	case interactive.CmdQuit:
		return true

	case interactive.CmdSetMarker:
		a.startInput("marker name", func(text string, ok bool) {
			if ok {
				_ = a.conn.SetMarker(text)
			}
		})

	case interactive.CmdSendStdin:
		a.startInput(fmt.Sprintf("stdin -> %s", a.defaultEndpoint), func(text string, ok bool) {
			if ok {
				_ = a.conn.SendStdin(a.defaultEndpoint, text)
			}
		})

	case interactive.CmdSendStdinKeep:
		a.startInput(fmt.Sprintf("stdin -> %s", a.defaultEndpoint), func(text string, ok bool) {
			if ok {
				_ = a.conn.SendStdin(a.defaultEndpoint, text)
			}

			a.execute(interactive.Dispatch{Command: interactive.CmdSendStdinKeep})
		})

	case interactive.CmdInjectStdin, interactive.CmdInjectStdinKeep:
		register := d.Register
		again := d.Command == interactive.CmdInjectStdinKeep

		a.startInput(fmt.Sprintf("stdin -> %s", register), func(text string, ok bool) {
			if ok {
				_ = a.conn.SendStdin(register, text)
			}

			if again {
				a.execute(interactive.Dispatch{Command: interactive.CmdInjectStdinKeep, Register: register})
			}
		})

	case interactive.CmdSetDefaultEndpoint:
		a.defaultEndpoint = d.Register

	case interactive.CmdWatchCreate:
		register, err := a.watches.NextFreeRegister("abcdefghijklmnopqrstuvwxyz")
		if err != nil {
			return false
		}

		a.editWatch(register)

	case interactive.CmdWatchEdit:
		a.editWatch(d.Register)

	case interactive.CmdWatchDelete:
		_ = a.watches.Remove(d.Register)

	case interactive.CmdWatchEnable:
		if w, ok := a.watches.Get(d.Register); ok {
			w.Enabled = true
		}

	case interactive.CmdWatchDisable:
		if w, ok := a.watches.Get(d.Register); ok {
			w.Enabled = false
		}

	case interactive.CmdShowNone:
		a.setShowMode(d.Register, showNone)

	case interactive.CmdShowFiltered:
		a.setShowMode(d.Register, showFiltered)

	case interactive.CmdShowAll:
		a.setShowMode(d.Register, showAll)

	case interactive.CmdToggleFiltered:
		a.globalFiltered = !a.globalFiltered

	case interactive.CmdSetCommandRegister:
		register := d.Register
		a.startInput(fmt.Sprintf("set \"%s", register), func(text string, ok bool) {
			if ok {
				a.commandRegisters[register] = text
			}
		})

	case interactive.CmdSendCommandInteractive:
		register := d.Register
		a.startInputPrefilled(fmt.Sprintf("\"%s -> %s", register, a.defaultEndpoint), a.commandRegisters[register], func(text string, ok bool) {
			if ok {
				a.commandRegisters[register] = text
				_ = a.conn.SendStdin(a.defaultEndpoint, text)
			}
		})

	case interactive.CmdSendCommandDirect:
		register := d.Register

		text, ok := a.commandRegisters[register]
		if !ok {
			a.statusLine = statusMessage.Render(fmt.Sprintf("command register %s is empty", register))
			return false
		}

		_ = a.conn.SendStdin(a.defaultEndpoint, text)

	case interactive.CmdListCommandRegisters:
		a.statusLine = statusMessage.Render(a.summarizeCommandRegisters())
	}

	return false
}

// summarizeCommandRegisters renders every bound command register as
// "R:payload", sorted by register, for the "? listing command.
func (a *App) summarizeCommandRegisters() string {
	registers := make([]string, 0, len(a.commandRegisters))
	for reg := range a.commandRegisters {
		registers = append(registers, reg)
	}

	sort.Strings(registers)

	parts := make([]string, 0, len(registers))
	for _, reg := range registers {
		parts = append(parts, fmt.Sprintf("%s:%s", reg, a.commandRegisters[reg]))
	}

	if len(parts) == 0 {
		return "no command registers set"
	}

	return strings.Join(parts, " ")
}

// watchEditorState is the multi-field overlay's in-progress edit: regex,
// replacement, bg-color and fg-color, navigated with Up/Down and committed
// with Enter, grounded on the original interactive client's MultiModeSubprompt.
type watchEditorState struct {
	register string
	fields   [watchEditorFieldCount]string
	cursor   int
	buf      strings.Builder
}

const (
	watchFieldRegex = iota
	watchFieldReplacement
	watchFieldBackground
	watchFieldForeground
	watchEditorFieldCount
)

var watchFieldLabels = [watchEditorFieldCount]string{
	watchFieldRegex:       "regex",
	watchFieldReplacement: "replacement",
	watchFieldBackground:  "bg-color",
	watchFieldForeground:  "fg-color",
}

// editWatch opens the multi-field overlay for register, pre-filled with its
// current regex/replacement/colors when a watch already exists there.
func (a *App) editWatch(register string) {
	ed := &watchEditorState{register: register}

	if w, ok := a.watches.Get(register); ok {
		ed.fields[watchFieldRegex] = w.Pattern
		ed.fields[watchFieldReplacement] = w.Replacement
	}

	if s, ok := a.styles.Watch(register); ok {
		ed.fields[watchFieldBackground] = colorField(s.Background)
		ed.fields[watchFieldForeground] = colorField(s.Foreground)
	}

	ed.buf.WriteString(ed.fields[watchFieldRegex])

	a.editor = ed
	a.redrawEditor()
}

func colorField(c lineengine.Color) string {
	if c == lineengine.ColorNone {
		return ""
	}

	return strconv.Itoa(int(c))
}

// feedEditor advances the open watch editor by one key: Up/Down move
// between fields (committing the current field's buffer first), Enter
// commits the whole watch, Esc aborts without changing anything.
func (a *App) feedEditor(key rune) {
	switch key {
	case keyArrowUp:
		a.moveEditorField(-1)

	case keyArrowDown:
		a.moveEditorField(1)

	case '\r', '\n':
		a.commitWatchEditor()

	case 0x1b: // ESC
		a.editor = nil

	case 0x7f, 0x08: // Backspace
		ed := a.editor
		s := ed.buf.String()
		if len(s) > 0 {
			ed.buf.Reset()
			ed.buf.WriteString(s[:len(s)-1])
		}

		a.redrawEditor()

	default:
		a.editor.buf.WriteRune(key)
		a.redrawEditor()
	}
}

func (a *App) moveEditorField(delta int) {
	ed := a.editor
	ed.fields[ed.cursor] = ed.buf.String()
	ed.cursor = (ed.cursor + delta + watchEditorFieldCount) % watchEditorFieldCount
	ed.buf.Reset()
	ed.buf.WriteString(ed.fields[ed.cursor])

	a.redrawEditor()
}

// commitWatchEditor applies the editor's fields to the registry and style
// table. An empty regex removes the watch outright. A regex that fails to
// compile is still kept — watch.New always returns a usable Watch — the
// compile error only surfaces as a status-line message.
func (a *App) commitWatchEditor() {
	ed := a.editor
	ed.fields[ed.cursor] = ed.buf.String()
	a.editor = nil

	regex := ed.fields[watchFieldRegex]
	if regex == "" {
		_ = a.watches.Remove(ed.register)
		return
	}

	w, err := watch.New(ed.register, regex, ed.fields[watchFieldReplacement])
	if err != nil {
		a.statusLine = statusMessage.Render(err.Error())
	}

	_ = a.watches.Remove(ed.register)
	_ = a.watches.Add(w)

	a.styles.SetWatch(ed.register, styleFromFields(ed.fields[watchFieldBackground], ed.fields[watchFieldForeground]))
}

// styleFromFields parses the editor's raw color-index text into a Style. An
// empty foreground must resolve to DefaultForeground, not ColorNone: Escape
// embeds Foreground directly into the SGR sequence, and ColorNone (-1)
// would render a malformed one.
func styleFromFields(bg, fg string) lineengine.Style {
	foreground := lineengine.ParseColor(fg)
	if foreground == lineengine.ColorNone {
		foreground = lineengine.DefaultForeground
	}

	return lineengine.Style{Background: lineengine.ParseColor(bg), Foreground: foreground}
}

// renderWatchEditor draws the current editor state as a bordered box, the
// active field highlighted.
func (a *App) renderWatchEditor() string {
	ed := a.editor

	lines := make([]string, watchEditorFieldCount+1)
	lines[0] = fmt.Sprintf("watch %s", ed.register)

	for i, label := range watchFieldLabels {
		value := ed.fields[i]
		if i == ed.cursor {
			value = ed.buf.String()
		}

		line := fmt.Sprintf("%-11s %s", label+":", value)
		if i == ed.cursor {
			line = editorCursor.Render(line)
		}

		lines[i+1] = line
	}

	return editorBox.Render(strings.Join(lines, "\n"))
}

func (a *App) redrawEditor() {
	for _, line := range strings.Split(a.renderWatchEditor(), "\n") {
		fmt.Fprint(a.out, line, "\r\n")
	}
}

func (a *App) startInput(prompt string, done func(string, bool)) {
	a.inputMode = true
	a.inputPrompt = prompt
	a.inputBuf.Reset()
	a.inputDone = done
}

// startInputPrefilled behaves like startInput but seeds the input buffer
// with prefill, used by "Ri to re-enter a command register's stored value
// for editing before it fires.
func (a *App) startInputPrefilled(prompt, prefill string, done func(string, bool)) {
	a.startInput(prompt, done)
	a.inputBuf.WriteString(prefill)
}

func (a *App) feedInput(key rune) {
	switch key {
	case '\r', '\n':
		text := a.inputBuf.String()
		a.inputMode = false
		a.inputDone(text, true)

	case 0x1b: // ESC
		a.inputMode = false
		a.inputDone("", false)

	case 0x7f, 0x08: // Backspace
		s := a.inputBuf.String()
		if len(s) > 0 {
			a.inputBuf.Reset()
			a.inputBuf.WriteString(s[:len(s)-1])
		}

	default:
		a.inputBuf.WriteRune(key)
	}
}

func renderStatus(ka wire.KeepaliveRecord) string {
	var parts []string

	for name, status := range ka.Actions {
		style := statusRunning
		if strings.Contains(status.State, "error") || strings.Contains(status.State, "terminating") {
			style = statusPaused
		}

		label := name
		if status.Register != "" {
			label = status.Register + ":" + name
		}

		parts = append(parts, style.Render(fmt.Sprintf(" %s:%s ", label, status.State)))
	}

	return strings.Join(parts, " ")
}

// enterRawMode puts stdin in raw mode when it's a real terminal, returning
// a restore function safe to call unconditionally (no-op otherwise).
func enterRawMode() (bool, func()) {
	fd := os.Stdin.Fd()
	if !xterm.IsTerminal(fd) {
		return false, func() {}
	}

	state, err := xterm.MakeRaw(fd)
	if err != nil {
		return false, func() {}
	}

	return true, func() { _ = xterm.Restore(fd, state) }
}

// keyArrowUp and keyArrowDown are sentinel rune values (outside valid
// Unicode) standing in for the Up/Down arrow keys once readKeys decodes
// their 3-byte escape sequence (ESC '[' 'A'/'B').
const (
	keyArrowUp   = rune(-1)
	keyArrowDown = rune(-2)
)

// readKeys feeds single runes read from r to the returned channel until
// ctx is cancelled or the reader hits EOF. An ESC byte immediately followed
// by already-buffered bytes is opportunistically decoded as an arrow-key
// escape sequence; a lone ESC (nothing buffered yet) passes through as
// Escape, since a real terminal sends the whole burst in one read().
func readKeys(ctx context.Context, r *os.File) <-chan rune {
	out := make(chan rune, 64)

	go func() {
		defer close(out)

		br := bufio.NewReader(r)

		for {
			if ctx.Err() != nil {
				return
			}

			ch, _, err := br.ReadRune()
			if err != nil {
				time.Sleep(config.ViewerPollInterval)
				return
			}

			if ch == 0x1b {
				if decoded, ok := decodeArrowKey(br); ok {
					ch = decoded
				}
			}

			select {
			case out <- ch:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// decodeArrowKey consumes a buffered '[' 'A'/'B' pair following an ESC
// already read from br, returning the matching sentinel. It only looks at
// bytes already buffered — it never blocks waiting for more input — so a
// lone ESC keystroke is never mistaken for the start of an escape sequence.
func decodeArrowKey(br *bufio.Reader) (rune, bool) {
	if br.Buffered() < 2 {
		return 0, false
	}

	peek, err := br.Peek(2)
	if err != nil || peek[0] != '[' {
		return 0, false
	}

	switch peek[1] {
	case 'A':
		_, _ = br.Discard(2)
		return keyArrowUp, true
	case 'B':
		_, _ = br.Discard(2)
		return keyArrowDown, true
	default:
		return 0, false
	}
}

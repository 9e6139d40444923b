package separator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New_UnknownMethod(t *testing.T) {
	_, err := New("by-xml", false, func(string) {})
	assert.Error(t, err)
}

func Test_New_DefaultsToNewline(t *testing.T) {
	sep, err := New("", false, func(string) {})
	require.NoError(t, err)

	_, ok := sep.(*ByNewline)
	assert.True(t, ok)
}

func Test_ByNewline_BasicSplit(t *testing.T) {
	var events []string
	sep := NewByNewline(false, func(e string) { events = append(events, e) })

	sep.Feed([]byte("a\nb\nc"))

	assert.Equal(t, []string{"a", "b"}, events)
}

func Test_ByNewline_ArbitraryChunking(t *testing.T) {
	var events []string
	sep := NewByNewline(false, func(e string) { events = append(events, e) })

	for _, b := range []byte("a\nb\nc") {
		sep.Feed([]byte{b})
	}

	assert.Equal(t, []string{"a", "b"}, events)
}

func Test_ByNewline_Trim(t *testing.T) {
	var events []string
	sep := NewByNewline(true, func(e string) { events = append(events, e) })

	sep.Feed([]byte("  a  \n  b  \n"))

	assert.Equal(t, []string{"a", "b"}, events)
}

func Test_ByNewline_NoImplicitFlushOfResidue(t *testing.T) {
	var events []string
	sep := NewByNewline(false, func(e string) { events = append(events, e) })

	sep.Feed([]byte("a\nb\nc"))

	assert.Equal(t, []string{"a", "b"}, events)
	assert.Equal(t, []byte("c"), sep.buf)
}

func Test_ByBrackets_Basic(t *testing.T) {
	var events []string
	sep := NewByBrackets(false, func(e string) { events = append(events, e) })

	sep.Feed([]byte("{a{b}c}{d}"))

	assert.Equal(t, []string{"{a{b}c}", "{d}"}, events)
}

func Test_ByBrackets_ArbitraryChunking(t *testing.T) {
	var events []string
	sep := NewByBrackets(false, func(e string) { events = append(events, e) })

	for _, b := range []byte("{a{b}c}{d}") {
		sep.Feed([]byte{b})
	}

	assert.Equal(t, []string{"{a{b}c}", "{d}"}, events)
}

func Test_ByBrackets_QuotedBraceIgnored(t *testing.T) {
	var events []string
	sep := NewByBrackets(false, func(e string) { events = append(events, e) })

	sep.Feed([]byte(`{x "}" y}`))

	assert.Equal(t, []string{`{x "}" y}`}, events)
}

func Test_ByBrackets_StrayCloseTolerated(t *testing.T) {
	var events []string
	sep := NewByBrackets(false, func(e string) { events = append(events, e) })

	sep.Feed([]byte("}{ok}"))

	assert.Equal(t, []string{"}{ok}"}, events)
}

func Test_ByBrackets_Trim(t *testing.T) {
	var events []string
	sep := NewByBrackets(true, func(e string) { events = append(events, e) })

	sep.Feed([]byte("  {a}  "))

	assert.Equal(t, []string{"{a}"}, events)
}

func Test_ByBrackets_UnclosedAtEndOfStreamEmitsNothing(t *testing.T) {
	var events []string
	sep := NewByBrackets(false, func(e string) { events = append(events, e) })

	sep.Feed([]byte(`{unterminated "quote`))

	assert.Empty(t, events)
}

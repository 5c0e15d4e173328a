package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTerminal(input string) (*Terminal, *bytes.Buffer) {
	var out bytes.Buffer
	return NewTerminal(strings.NewReader(input), &out), &out
}

func TestNewTerminal_NotTTY(t *testing.T) {
	term, _ := newTestTerminal("")
	assert.False(t, term.isTTY)
	assert.Equal(t, -1, term.fd)
}

func TestReadLine(t *testing.T) {
	term, out := newTestTerminal("first\r\nsecond")

	line, err := term.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "first", line)
	assert.Equal(t, "> ", out.String())

	line, err = term.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	_, err = term.ReadLine("")
	assert.ErrorIs(t, err, io.EOF)
}

func TestBaseURL(t *testing.T) {
	term, out := newTestTerminal("  https://example.org  \n")

	url, err := term.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", url)
	assert.Contains(t, out.String(), "Public base URL")
}

func TestBaseURL_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "\n", "   \n"} {
		term, _ := newTestTerminal(input)
		url, err := term.BaseURL(context.Background())
		require.NoError(t, err)
		assert.Empty(t, url)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"s\n", true},
		{"sí\n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			term, out := newTestTerminal(tt.input)
			got, err := term.Confirm(context.Background(), "Remove everything?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Remove everything? [y/N]: ")
		})
	}
}

func TestConfirm_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	term, _ := newTestTerminal("y\n")

	ok, err := term.Confirm(ctx, "?")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcknowledge_LineMode(t *testing.T) {
	term, out := newTestTerminal("\nnext\n")

	require.NoError(t, term.Acknowledge())
	assert.Contains(t, out.String(), "Press any key")

	line, err := term.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "next", line)
}

func TestAcknowledge_EOF(t *testing.T) {
	term, _ := newTestTerminal("")
	assert.NoError(t, term.Acknowledge())
}

// =============================================================================
// Preset Tests
// =============================================================================

type recordingSource struct {
	url      string
	answer   bool
	urlCalls int
	asked    []string
}

func (r *recordingSource) BaseURL(context.Context) (string, error) {
	r.urlCalls++
	return r.url, nil
}

func (r *recordingSource) Confirm(_ context.Context, q string) (bool, error) {
	r.asked = append(r.asked, q)
	return r.answer, nil
}

func TestPreset_BaseURL(t *testing.T) {
	fb := &recordingSource{url: "https://prompted.example"}

	url, err := Preset{URL: " https://flag.example ", Fallback: fb}.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example", url)
	assert.Zero(t, fb.urlCalls)

	url, err = Preset{Fallback: fb}.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://prompted.example", url)
	assert.Equal(t, 1, fb.urlCalls)

	url, err = Preset{}.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestPreset_Confirm(t *testing.T) {
	fb := &recordingSource{answer: false}

	ok, err := Preset{AssumeYes: true, Fallback: fb}.Confirm(context.Background(), "delete?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, fb.asked)

	ok, err = Preset{Fallback: fb}.Confirm(context.Background(), "delete?")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"delete?"}, fb.asked)

	ok, err = Preset{}.Confirm(context.Background(), "delete?")
	require.NoError(t, err)
	assert.False(t, ok)
}

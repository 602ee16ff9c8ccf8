package tui_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/aretw0/chronicle/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3")

	out := buf.String()
	assert.Contains(t, out, "v1.2.3")
	assert.NotContains(t, out, "\x1b[", "a buffer gets no escape sequences")
}

func TestNewRenderer(t *testing.T) {
	render := tui.NewRenderer(80)
	out, err := render("# Lineage\n\n- **R** `core.local`\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Lineage")
	assert.Contains(t, out, "core.local")
}

func TestRenderFor_NonTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, tui.IsTerminal(f))
	assert.Zero(t, tui.TerminalWidth(f))

	md := "- **R**\n"
	out, err := tui.RenderFor(f, md)
	require.NoError(t, err)
	assert.Equal(t, md, out)
	assert.False(t, strings.Contains(out, "\x1b"))
}

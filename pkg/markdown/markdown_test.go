package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTML(t *testing.T) {
	out, err := ToHTML("# Entries\n\nUse **references** to link modules.")
	require.NoError(t, err)
	assert.Contains(t, out, `<h1 id="entries">Entries</h1>`)
	assert.Contains(t, out, "<strong>references</strong>")
}

func TestToHTML_KeepsRawHTML(t *testing.T) {
	out, err := ToHTML("<div class=\"note\">kept</div>")
	require.NoError(t, err)
	assert.Contains(t, out, `<div class="note">kept</div>`)
}

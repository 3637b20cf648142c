package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	out := Builder{}.Build("a={{{A}}} b={{{ B }}} c={{{C}}}", map[string]string{"A": "1", "B": "2"})
	assert.Equal(t, "a=1 b=2 c=", out)

	strict := Builder{Strict: true}.Build("{{{A}}}{{{MISSING}}}", map[string]string{"A": "x"})
	assert.Equal(t, "x{{{MISSING}}}", strict)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, Placeholders("{{{B}}} {{{A}}} {{{B}}}"))
}

const sample = `<?php
FIRST: {
    echo 1;
} #@@/FIRST

SECOND: {
    echo 2;
    echo 3;
} #@@/SECOND

BROKEN: {
    never closed
`

func TestSections(t *testing.T) {
	sections := Sections(sample)
	require.Len(t, sections, 2)

	assert.Equal(t, "    echo 1;\n", sections["FIRST"].Body)
	assert.Equal(t, "    echo 2;\n    echo 3;\n", sections["SECOND"].Body)
	assert.True(t, strings.HasPrefix(sample[sections["SECOND"].Start:], "SECOND: {"))
	assert.True(t, strings.HasSuffix(sample[:sections["SECOND"].End], "} #@@/SECOND"))
}

func TestReplaceSection(t *testing.T) {
	out, err := ReplaceSection(sample, "SECOND", "    echo 'new';")
	require.NoError(t, err)
	assert.Contains(t, out, "SECOND: {\n    echo 'new';\n} #@@/SECOND")
	assert.Contains(t, out, "FIRST: {\n    echo 1;\n} #@@/FIRST")

	_, err = ReplaceSection(sample, "BROKEN", "x")
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestBuiltinWPConfigHasSections(t *testing.T) {
	content, source, err := NewLocator().Locate(WPConfig)
	require.NoError(t, err)
	assert.Equal(t, "builtin:wp-config.php", source)

	sections := Sections(content)
	for _, label := range []string{"ENV_VARIABLES", "KEYS", "BOOTSTRAP_WP"} {
		assert.Contains(t, sections, label)
	}
	assert.Contains(t, Placeholders(content), "ENV_CONSTANTS")
	assert.Contains(t, Placeholders(content), "NONCE_SALT")
}

func TestLocatorPrefersCustomDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Index), []byte("custom {{{BOOTSTRAP_PATH}}}"), 0o644))

	l := NewLocator(filepath.Join(t.TempDir(), "missing"), dir)
	out, err := l.Render(Index, map[string]string{"BOOTSTRAP_PATH": "wp/wp-blog-header.php"})
	require.NoError(t, err)
	assert.Equal(t, "custom wp/wp-blog-header.php", out)

	out, err = l.Render(MuLoader, map[string]string{"MU_PLUGINS_LIST": "'a/a.php'"})
	require.NoError(t, err)
	assert.Contains(t, out, "foreach (['a/a.php']")

	_, _, err = l.Locate("unknown.php")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

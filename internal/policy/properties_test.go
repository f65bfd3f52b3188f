package policy

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFileName(t *testing.T) {
	assert.Equal(t, "PDF-policy.properties", FilterFileName("pdf"))
	assert.Equal(t, "EPUB-policy.properties", FilterFileName(" Epub "))
}

func TestLoadPatternFilter(t *testing.T) {
	props := `# comment
! also a comment
No\ encryption=true
images = false
fonts: TRUE
multi\
  line=true
price\ in\ ${currency}=true
`
	f, err := LoadPatternFilter(strings.NewReader(props))
	require.NoError(t, err)
	assert.Equal(t, []string{"No encryption", "fonts", "multiline", "price in ${currency}"}, f.Names())
	assert.True(t, f.Active())
}

func TestLoadPatternFilterMalformed(t *testing.T) {
	_, err := LoadPatternFilter(strings.NewReader(`bad\u00=true` + "\n"))
	assert.Error(t, err)
}

func TestWritePropertiesRoundTrip(t *testing.T) {
	pm, err := CompilePolicyMap(bytes.NewReader(readSample(t)), NoFilter)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteProperties(&buf, pm))
	assert.True(t, strings.HasPrefix(buf.String(), "# This properties file"))
	assert.Contains(t, buf.String(), "# Pattern: No encryption\n")
	assert.Contains(t, buf.String(), "## Assert (test): not(encrypt)\n")

	f, err := LoadPatternFilter(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"No encryption", "images"}, f.Names())
}

func TestWritePropertiesKeyEscaping(t *testing.T) {
	for _, key := range []string{"a b", "c:d", "mid#hash", `back\slash`, "tab\there"} {
		pm := NewPolicyMap()
		pm.Add(key, "/doc", "true()")

		var buf bytes.Buffer
		require.NoError(t, WriteProperties(&buf, pm))
		got, err := LoadPatternFilter(&buf)
		require.NoError(t, err)
		assert.Equal(t, []string{key}, got.Names(), key)
	}
}

func TestWritePropertiesUnwritableKey(t *testing.T) {
	for _, key := range []string{"x=y", "#hash", "!bang"} {
		pm := NewPolicyMap()
		pm.Add(key, "/doc", "true()")
		assert.Error(t, WriteProperties(&bytes.Buffer{}, pm), key)
	}
}

func TestLoadPatternFilterFile(t *testing.T) {
	dir := t.TempDir()

	f, found, err := LoadPatternFilterFile(dir, "pdf")
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, f.Active())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "PDF-policy.properties"), []byte("images=true\n"), 0o644))
	f, found, err = LoadPatternFilterFile(dir, "pdf")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"images"}, f.Names())
}

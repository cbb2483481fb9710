package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFile_PythonFunction(t *testing.T) {
	path := writeTemp(t, "auth.py", "def authenticate(user):\n    return validate(user)\n")

	units, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, units, 1)

	u := units[0]
	assert.Equal(t, "python", u.Language)
	assert.Equal(t, "function", u.UnitType)
	assert.Equal(t, "authenticate", u.UnitName)
	assert.Equal(t, 1, u.StartLine)
	assert.Equal(t, 2, u.EndLine)
}

func TestParseFile_PythonFunctionSignatureUpdates(t *testing.T) {
	path := writeTemp(t, "auth.py", "def authenticate(user, password):\n    return validate(user, password)\n")

	units, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Contains(t, units[0].Signature, "password")
}

func TestParseFile_EmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.py", "")

	units, err := ParseFile(path)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestParseFile_CommentOnlyFile(t *testing.T) {
	path := writeTemp(t, "comments.py", "# just a comment\n# another comment\n")

	units, err := ParseFile(path)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestParseFile_UnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "data.bin", "whatever")

	_, err := ParseFile(path)
	require.Error(t, err)
}

func TestCanParse(t *testing.T) {
	assert.True(t, CanParse("main.go"))
	assert.True(t, CanParse("service.py"))
	assert.False(t, CanParse("image.png"))
}

func TestParseSource_GoFunctionAndStruct(t *testing.T) {
	src := `package foo

type Widget struct {
	Name string
}

func NewWidget(name string) *Widget {
	return &Widget{Name: name}
}
`
	units := ParseSource("widget.go", "go", src)
	require.Len(t, units, 2)

	var names []string
	for _, u := range units {
		names = append(names, u.UnitName)
	}
	assert.ElementsMatch(t, []string{"Widget", "NewWidget"}, names)
}

func TestParseSource_JavaScriptClass(t *testing.T) {
	src := `class Greeter {
  greet() {
    return "hi";
  }
}
`
	units := ParseSource("greeter.js", "javascript", src)
	require.Len(t, units, 1)
	assert.Equal(t, "class", units[0].UnitType)
	assert.Equal(t, "Greeter", units[0].UnitName)
	assert.Equal(t, 1, units[0].StartLine)
	assert.Equal(t, 5, units[0].EndLine)
}

func TestParseSource_ToleratesSyntaxErrors(t *testing.T) {
	src := "def broken(:\n    pass\n"
	assert.NotPanics(t, func() {
		ParseSource("broken.py", "python", src)
	})
}

func TestParseFile_NonexistentFile(t *testing.T) {
	_, err := ParseFile("/nonexistent/path/does/not/exist.py")
	require.Error(t, err)
}

// Package parser implements C1, the Code Parser: a pure, referentially
// transparent file -> []model.SemanticUnit extractor. It never touches the
// store or the network — given the same bytes, it always returns the same
// units.
package parser

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/model"
)

// Language is a table entry describing how to recognize and extract units
// for one source language. Adding a ninth language is a table entry, not a
// new code path — mirrors the teacher's table-driven action registries
// (semantic/actionregistry.go).
type Language struct {
	Name    string
	Exts    []string
	Braced  bool // true: brace-delimited blocks; false: indentation-delimited
	Defines []UnitPattern
}

// UnitPattern recognizes one kind of semantic unit via a regexp whose first
// capture group is the unit's name.
type UnitPattern struct {
	UnitType string
	Pattern  *regexp.Regexp
}

var languages = []Language{
	{
		Name: "python", Exts: []string{".py"}, Braced: false,
		Defines: []UnitPattern{
			{"function", regexp.MustCompile(`^(\s*)def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)},
			{"class", regexp.MustCompile(`^(\s*)class\s+([A-Za-z_][A-Za-z0-9_]*)\s*[:\(]`)},
		},
	},
	{
		Name: "ruby", Exts: []string{".rb"}, Braced: false,
		Defines: []UnitPattern{
			{"function", regexp.MustCompile(`^(\s*)def\s+([A-Za-z_][A-Za-z0-9_!?]*)`)},
			{"class", regexp.MustCompile(`^(\s*)class\s+([A-Za-z_][A-Za-z0-9_:]*)`)},
		},
	},
	{
		Name: "javascript", Exts: []string{".js", ".jsx", ".mjs"}, Braced: true,
		Defines: []UnitPattern{
			{"function", regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)},
			{"class", regexp.MustCompile(`^\s*(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)},
		},
	},
	{
		Name: "typescript", Exts: []string{".ts", ".tsx"}, Braced: true,
		Defines: []UnitPattern{
			{"function", regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*[<(]`)},
			{"class", regexp.MustCompile(`^\s*(?:export\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)},
			{"interface", regexp.MustCompile(`^\s*(?:export\s+)?interface\s+([A-Za-z_$][A-Za-z0-9_$]*)`)},
		},
	},
	{
		Name: "java", Exts: []string{".java"}, Braced: true,
		Defines: []UnitPattern{
			{"class", regexp.MustCompile(`^\s*(?:public|private|protected)?\s*(?:static\s+)?(?:final\s+)?class\s+([A-Za-z_][A-Za-z0-9_]*)`)},
			{"interface", regexp.MustCompile(`^\s*(?:public|private|protected)?\s*interface\s+([A-Za-z_][A-Za-z0-9_]*)`)},
			{"function", regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+)?(?:final\s+)?[\w<>\[\]]+\s+([A-Za-z_][A-Za-z0-9_]*)\s*\([^;]*$`)},
		},
	},
	{
		Name: "go", Exts: []string{".go"}, Braced: true,
		Defines: []UnitPattern{
			{"function", regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)},
			{"struct", regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+struct\s*\{`)},
			{"interface", regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+interface\s*\{`)},
		},
	},
	{
		Name: "rust", Exts: []string{".rs"}, Braced: true,
		Defines: []UnitPattern{
			{"function", regexp.MustCompile(`^\s*(?:pub\s+)?(?:async\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`)},
			{"struct", regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+([A-Za-z_][A-Za-z0-9_]*)`)},
			{"trait", regexp.MustCompile(`^\s*(?:pub\s+)?trait\s+([A-Za-z_][A-Za-z0-9_]*)`)},
		},
	},
	{
		Name: "kotlin", Exts: []string{".kt", ".kts"}, Braced: true,
		Defines: []UnitPattern{
			{"function", regexp.MustCompile(`^\s*(?:public|private|internal)?\s*fun\s+([A-Za-z_][A-Za-z0-9_]*)`)},
			{"class", regexp.MustCompile(`^\s*(?:public|private|internal)?\s*(?:data\s+|sealed\s+|abstract\s+)?class\s+([A-Za-z_][A-Za-z0-9_]*)`)},
		},
	},
	{
		Name: "swift", Exts: []string{".swift"}, Braced: true,
		Defines: []UnitPattern{
			{"function", regexp.MustCompile(`^\s*(?:public|private|internal)?\s*func\s+([A-Za-z_][A-Za-z0-9_]*)`)},
			{"class", regexp.MustCompile(`^\s*(?:public|private|internal)?\s*class\s+([A-Za-z_][A-Za-z0-9_]*)`)},
			{"struct", regexp.MustCompile(`^\s*(?:public|private|internal)?\s*struct\s+([A-Za-z_][A-Za-z0-9_]*)`)},
		},
	},
}

func languageForExt(ext string) (Language, bool) {
	for _, lang := range languages {
		for _, e := range lang.Exts {
			if e == ext {
				return lang, true
			}
		}
	}
	return Language{}, false
}

// CanParse reports whether path's extension is recognized.
func CanParse(path string) bool {
	_, ok := languageForExt(strings.ToLower(filepath.Ext(path)))
	return ok
}

// ParseFile is pure and referentially transparent: given the same bytes on
// disk, it always returns the same units. Empty files and comment-only
// files yield zero units without error. Syntax errors are tolerated — it
// returns whatever it can extract and never fails on malformed input.
func ParseFile(path string) ([]model.SemanticUnit, error) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := languageForExt(ext)
	if !ok {
		return nil, errs.Validation("parser", "ParseFile", "unsupported file extension: "+ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "parser", "ParseFile", "read source file", err)
	}

	return ParseSource(path, lang.Name, string(data)), nil
}

// ParseSource extracts semantic units from in-memory source text, given an
// already-resolved language name. Exposed separately from ParseFile so
// callers that already have file content (e.g. from a watcher event) don't
// need a second disk read.
func ParseSource(path, languageName, content string) []model.SemanticUnit {
	lang, ok := languageByName(languageName)
	if !ok {
		return nil
	}

	lines := strings.Split(content, "\n")
	var units []model.SemanticUnit

	for i, line := range lines {
		for _, pat := range lang.Defines {
			m := pat.Pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[len(m)-1]
			var end int
			if lang.Braced {
				end = findBraceEnd(lines, i)
			} else {
				indent := leadingWhitespace(m[1])
				end = findIndentEnd(lines, i, indent)
			}
			unitContent := strings.Join(lines[i:end+1], "\n")
			if strings.TrimSpace(unitContent) == "" {
				continue
			}
			units = append(units, model.SemanticUnit{
				FilePath:  path,
				Language:  lang.Name,
				UnitType:  pat.UnitType,
				UnitName:  name,
				Content:   unitContent,
				StartLine: i + 1,
				EndLine:   end + 1,
				Signature: strings.TrimSpace(line),
			})
			break
		}
	}

	return units
}

func languageByName(name string) (Language, bool) {
	for _, lang := range languages {
		if lang.Name == name {
			return lang, true
		}
	}
	return Language{}, false
}

func leadingWhitespace(s string) int {
	return len(s)
}

// findBraceEnd returns the 0-indexed line on which the brace opened at or
// after startLine closes. If no opening brace is found on startLine (e.g. a
// forward declaration), it scans forward to the end of the file for one; if
// none is found, the unit is just the declaration line itself.
func findBraceEnd(lines []string, startLine int) int {
	depth := 0
	seenOpen := false
	for i := startLine; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				seenOpen = true
			case '}':
				depth--
			}
		}
		if seenOpen && depth <= 0 {
			return i
		}
	}
	if !seenOpen {
		return startLine
	}
	return len(lines) - 1
}

// findIndentEnd returns the 0-indexed last line belonging to an
// indentation-delimited block starting at startLine with declaration
// indentation declIndent. The block ends at the line before the next
// non-blank line whose indentation is <= declIndent.
func findIndentEnd(lines []string, startLine, declIndent int) int {
	last := startLine
	for i := startLine + 1; i < len(lines); i++ {
		trimmed := strings.TrimRight(lines[i], " \t\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		indent := len(trimmed) - len(strings.TrimLeft(trimmed, " \t"))
		if indent <= declIndent {
			break
		}
		last = i
	}
	return last
}

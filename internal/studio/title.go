package studio

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// deriveTitle turns a project file name into a human-readable job title.
func deriveTitle(projectPath string) string {
	if projectPath == "" {
		return "Untitled Render"
	}
	base := filepath.Base(projectPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled Render"
	}
	return cases.Title(language.Und).String(title)
}

// defaultOutputPath places the render in outputDir named after the project.
func defaultOutputPath(outputDir, projectPath string) string {
	base := filepath.Base(projectPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." {
		stem = "render"
	}
	return filepath.Join(outputDir, stem+".mp4")
}

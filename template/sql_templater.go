package template

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"text/template"
)

// ExecuteSqlTemplate renders the named SQL template from fsys with params.
// Missing keys are an error so a typo never reaches the database.
func ExecuteSqlTemplate(fsys fs.FS, name string, params map[string]any) (string, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

// ReadSqlTemplate reads a SQL file from disk and returns its contents as a string
func ReadSqlTemplate(templatePath string) (string, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}
	return string(content), nil
}

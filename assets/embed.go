// assets/embed.go
//
// Files compiled into the binary:
//   - templates/: the game page.
//   - sql/<dialect>/: schema migrations for the history database.

package assets

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html sql
var FS embed.FS

// PageTemplate parses the game page template.
func PageTemplate() (*template.Template, error) {
	return template.ParseFS(FS, "templates/index.html")
}

// Migrations returns the migration files for a SQL dialect
// ("sqlite" or "postgres"), rooted at that dialect's directory.
func Migrations(dialect string) (fs.FS, error) {
	return fs.Sub(FS, "sql/"+dialect)
}

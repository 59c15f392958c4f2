// internal/diff/fileclass.go
package diff

import (
	"path"
	"strings"

	"github.com/bhardwajvicky/DevView/internal/model"
)

var docsExtensions = map[string]bool{
	"md": true, "markdown": true, "rst": true, "adoc": true, "txt": true,
}

var docsBaseNames = map[string]bool{
	"readme": true, "license": true, "changelog": true, "contributing": true,
	"notice": true, "authors": true,
}

var configExtensions = map[string]bool{
	"json": true, "yaml": true, "yml": true, "toml": true, "ini": true,
	"cfg": true, "conf": true, "config": true, "env": true, "properties": true,
	"xml": true, "csproj": true, "sln": true, "props": true, "targets": true,
	"lock": true, "mod": true, "sum": true,
}

var configBaseNames = map[string]bool{
	"dockerfile": true, "makefile": true, ".gitignore": true,
	".gitattributes": true, ".editorconfig": true, ".dockerignore": true,
}

var dataExtensions = map[string]bool{
	"csv": true, "tsv": true, "sql": true, "db": true, "sqlite": true,
	"sqlite3": true, "parquet": true, "avro": true, "jsonl": true,
	"xlsx": true, "xls": true, "dat": true,
}

// Extension returns the lower-cased extension of filePath without the dot,
// or "" when there is none.
func Extension(filePath string) string {
	ext := path.Ext(filePath)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// CategoryForPath buckets a file into exactly one of code, data, config or
// docs. Anything unrecognized is code.
func CategoryForPath(filePath string) model.FileCategory {
	base := strings.ToLower(path.Base(filePath))
	ext := Extension(filePath)
	stem := strings.TrimSuffix(base, path.Ext(base))

	switch {
	case docsBaseNames[stem] || docsExtensions[ext]:
		return model.CategoryDocs
	case strings.HasPrefix(strings.ToLower(filePath), "docs/"):
		return model.CategoryDocs
	case configBaseNames[base] || configExtensions[ext]:
		return model.CategoryConfig
	case dataExtensions[ext]:
		return model.CategoryData
	default:
		return model.CategoryCode
	}
}

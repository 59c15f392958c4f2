// internal/diff/classifier.go

// Package diff classifies raw unified-diff text into per-file, per-category
// line statistics. It is a pure text scanner: no I/O, no state, and
// malformed input degrades to whatever could be parsed rather than erroring.
package diff

import (
	"strings"

	"github.com/bhardwajvicky/DevView/internal/model"
)

var commentMarkers = []string{"//", "/*", "*", "*/", "#", "<!--", "-->"}

// LineCount is an added/removed pair for one classification category.
type LineCount struct {
	Added   int
	Removed int
}

// FileChange is the per-file detail for one file block of a diff.
type FileChange struct {
	Path         string
	Category     model.FileCategory
	ChangeStatus string
	LinesAdded   int
	LinesRemoved int
	Extension    string
}

// Summary is the result of classifying one diff. Totals count every changed
// line; the code category counts only lines that are not comments or blank,
// while data, config and docs count all lines of files in those buckets.
type Summary struct {
	TotalAdded   int
	TotalRemoved int
	Code         LineCount
	Data         LineCount
	Config       LineCount
	Docs         LineCount
	FileChanges  []FileChange
}

// Classify parses unified-diff text. Header lines (diff --git, index, +++,
// ---) are structural and never counted; a leading '+' or '-' on any other
// line attributes it to the file block being parsed.
func Classify(diffText string) Summary {
	var s Summary
	var current *FileChange

	flush := func() {
		if current != nil {
			s.FileChanges = append(s.FileChanges, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git"):
			flush()
			p := pathFromHeader(line)
			current = &FileChange{
				Path:         p,
				Category:     CategoryForPath(p),
				ChangeStatus: "modified",
				Extension:    Extension(p),
			}

		case strings.HasPrefix(line, "new file mode"):
			if current != nil {
				current.ChangeStatus = "added"
			}

		case strings.HasPrefix(line, "deleted file mode"):
			if current != nil {
				current.ChangeStatus = "deleted"
			}

		case strings.HasPrefix(line, "rename from "):
			if current != nil {
				current.ChangeStatus = "renamed"
			}

		case strings.HasPrefix(line, "rename to "):
			if current != nil {
				current.Path = strings.TrimPrefix(line, "rename to ")
				current.Category = CategoryForPath(current.Path)
				current.Extension = Extension(current.Path)
			}

		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "index "):
			// structural, never counted

		case strings.HasPrefix(line, "+"):
			s.TotalAdded++
			cat := model.CategoryCode
			if current != nil {
				current.LinesAdded++
				cat = current.Category
			}
			s.count(cat, line[1:], true)

		case strings.HasPrefix(line, "-"):
			s.TotalRemoved++
			cat := model.CategoryCode
			if current != nil {
				current.LinesRemoved++
				cat = current.Category
			}
			s.count(cat, line[1:], false)
		}
	}
	flush()

	return s
}

// count attributes one changed line to its file's category. Inside the code
// category, comment and blank lines stay out of the category count (they are
// still part of the totals).
func (s *Summary) count(cat model.FileCategory, content string, added bool) {
	bucket := &s.Code
	switch cat {
	case model.CategoryData:
		bucket = &s.Data
	case model.CategoryConfig:
		bucket = &s.Config
	case model.CategoryDocs:
		bucket = &s.Docs
	case model.CategoryCode:
		if isCommentOrBlank(content) {
			return
		}
	}
	if added {
		bucket.Added++
	} else {
		bucket.Removed++
	}
}

func isCommentOrBlank(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	for _, marker := range commentMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}

// pathFromHeader extracts the post-image path from a "diff --git a/x b/y"
// header, falling back to whatever follows the last space.
func pathFromHeader(line string) string {
	if idx := strings.Index(line, " b/"); idx >= 0 {
		return line[idx+3:]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[len(fields)-1], "b/")
}

// Stats converts a Summary into the commit-level counters the store keeps.
func (s Summary) Stats() model.CommitStats {
	return model.CommitStats{
		LinesAdded:         s.TotalAdded,
		LinesRemoved:       s.TotalRemoved,
		CodeLinesAdded:     s.Code.Added,
		CodeLinesRemoved:   s.Code.Removed,
		DataLinesAdded:     s.Data.Added,
		DataLinesRemoved:   s.Data.Removed,
		ConfigLinesAdded:   s.Config.Added,
		ConfigLinesRemoved: s.Config.Removed,
		DocsLinesAdded:     s.Docs.Added,
		DocsLinesRemoved:   s.Docs.Removed,
	}
}

package pbk

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Category determines the destination subdirectory of a backed-up file.
type Category string

const (
	CategoryCode     Category = "code"
	CategoryDatabase Category = "database"
	CategoryDocs     Category = "docs"
	CategoryScripts  Category = "scripts"
)

// Categories lists every destination subdirectory in the order they are
// created and rendered.
var Categories = []Category{CategoryCode, CategoryDatabase, CategoryDocs, CategoryScripts}

// ParseCategory validates a manifest category. The database category is
// reserved for the database copy and cannot appear in a manifest.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryCode, CategoryDocs, CategoryScripts:
		return c, nil
	case CategoryDatabase:
		return "", fmt.Errorf("category %q is reserved for the database file", s)
	default:
		return "", fmt.Errorf("unknown category: %q", s)
	}
}

// CategoryFor infers a category from a file extension.
func CategoryFor(name string) Category {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md":
		return CategoryDocs
	case ".py":
		return CategoryCode
	case ".bat":
		return CategoryScripts
	default:
		return CategoryCode
	}
}

// ManifestEntry maps a source file to its backup category.
type ManifestEntry struct {
	Path     string
	Category Category
}

// DefaultManifest returns the built-in manifest of the project's source files.
// A fresh slice is returned on every call.
func DefaultManifest() []ManifestEntry {
	return []ManifestEntry{
		{Path: "bot.py", Category: CategoryCode},
		{Path: "db_manager.py", Category: CategoryCode},
		{Path: "orders_updater.py", Category: CategoryCode},
		{Path: "sheets_client.py", Category: CategoryCode},
		{Path: "states.py", Category: CategoryCode},
		{Path: "backup.py", Category: CategoryCode},
		{Path: "restore.py", Category: CategoryCode},
		{Path: "requirements.txt", Category: CategoryCode},
		{Path: "setup_github.py", Category: CategoryCode},
		{Path: "setup_github.bat", Category: CategoryScripts},
		{Path: "FINAL_SETUP.md", Category: CategoryDocs},
		{Path: "QUICK_SETUP.md", Category: CategoryDocs},
	}
}

package filter

import (
	"strings"
)

// AllExtensions is the allow-list entry that disables extension filtering.
const AllExtensions = "all"

// TypeGroups maps file type group names to their associated file extensions.
var TypeGroups = map[string][]string{
	"video": {
		".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpeg", ".mpg",
	},
	"audio": {
		".mp3", ".flac", ".wav", ".aac", ".ogg", ".wma", ".m4a", ".opus", ".aiff",
	},
	"image": {
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp", ".heic", ".raw",
	},
	"archive": {
		".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar", ".tgz", ".tar.gz", ".tar.bz2", ".tar.xz",
	},
	"document": {
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".rtf", ".txt",
	},
	"executable": {
		".exe", ".dll", ".sys", ".msi", ".scr", ".bin", ".so", ".dylib", ".elf", ".apk", ".jar",
	},
	"script": {
		".ps1", ".bat", ".cmd", ".vbs", ".js", ".sh", ".py", ".hta",
	},
}

// Extensions is a case-insensitive extension allow-list.
// An empty list, or one containing "all", allows every file.
type Extensions struct {
	exts []string
}

// NewExtensions normalizes exts (lowercase, leading dot) into an allow-list.
func NewExtensions(exts ...string) *Extensions {
	e := &Extensions{}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if ext == AllExtensions {
			return &Extensions{}
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		e.exts = append(e.exts, ext)
	}
	return e
}

// ExpandTypeGroups returns the extensions of the named groups.
// Unknown group names are returned in the second value.
func ExpandTypeGroups(groups ...string) (exts []string, unknown []string) {
	for _, g := range groups {
		list, ok := TypeGroups[strings.ToLower(strings.TrimSpace(g))]
		if !ok {
			unknown = append(unknown, g)
			continue
		}
		exts = append(exts, list...)
	}
	return exts, unknown
}

// IsAll reports whether the list allows every file.
func (e *Extensions) IsAll() bool {
	return e == nil || len(e.exts) == 0
}

// List returns the normalized entries.
func (e *Extensions) List() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.exts))
	copy(out, e.exts)
	return out
}

// Allows reports whether name ends with an allowed extension. Suffix matching
// lets multi-part entries such as ".tar.gz" work.
func (e *Extensions) Allows(name string) bool {
	if e.IsAll() {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range e.exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Ext returns the lowercased extension of name including the dot, or "".
func Ext(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 || strings.ContainsAny(name[i:], `/\`) {
		return ""
	}
	return strings.ToLower(name[i:])
}

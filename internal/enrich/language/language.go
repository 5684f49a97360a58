// Package language maps a filename to a detected programming language via
// its extension, for per-file enrichment of commit diffs.
package language

import (
	"strings"
)

// Unknown is returned for any extension not present in the table.
const Unknown = "unknown"

// byExtension is seed data for the extension -> language lookup. Read-only
// in the hot path; additional pairs can be merged in via WithExtensions.
var byExtension = map[string]string{
	"go":    "go",
	"py":    "python",
	"rb":    "ruby",
	"js":    "javascript",
	"jsx":   "javascript",
	"mjs":   "javascript",
	"ts":    "typescript",
	"tsx":   "typescript",
	"java":  "java",
	"kt":    "kotlin",
	"kts":   "kotlin",
	"c":     "c",
	"h":     "c",
	"cc":    "cpp",
	"cpp":   "cpp",
	"cxx":   "cpp",
	"hpp":   "cpp",
	"cs":    "csharp",
	"rs":    "rust",
	"swift": "swift",
	"php":   "php",
	"sh":    "shell",
	"bash":  "shell",
	"zsh":   "shell",
	"sql":   "sql",
	"html":  "html",
	"htm":   "html",
	"css":   "css",
	"scss":  "scss",
	"less":  "less",
	"yaml":  "yaml",
	"yml":   "yaml",
	"json":  "json",
	"toml":  "toml",
	"xml":   "xml",
	"md":    "markdown",
	"mdx":   "markdown",
	"proto": "protobuf",
	"dockerfile": "dockerfile",
	"tf":    "terraform",
	"vue":   "vue",
	"scala": "scala",
	"ex":    "elixir",
	"exs":   "elixir",
	"erl":   "erlang",
	"hs":    "haskell",
	"lua":   "lua",
	"r":     "r",
	"dart":  "dart",
	"zig":   "zig",
}

// Detector looks up a filename's language using a possibly-extended copy of
// byExtension, so a deployment's file_extensions table can add pairs without
// mutating the shared seed map.
type Detector struct {
	table map[string]string
}

// NewDetector builds a Detector over the built-in extension table.
func NewDetector() *Detector {
	return &Detector{table: byExtension}
}

// WithExtensions returns a Detector that additionally recognizes extra,
// overlaying extra on top of the built-in table (extra wins on conflict).
func WithExtensions(extra map[string]string) *Detector {
	table := make(map[string]string, len(byExtension)+len(extra))
	for k, v := range byExtension {
		table[k] = v
	}
	for k, v := range extra {
		table[strings.ToLower(k)] = v
	}
	return &Detector{table: table}
}

// Detect extracts the last extension token from filename and maps it to a
// language, falling back to Unknown. Lookups are read-only.
func (d *Detector) Detect(filename string) string {
	base := filename
	if idx := strings.LastIndexByte(filename, '/'); idx >= 0 {
		base = filename[idx+1:]
	}
	if strings.EqualFold(base, "Dockerfile") {
		return "dockerfile"
	}

	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return Unknown
	}
	ext := strings.ToLower(base[dot+1:])
	if lang, ok := d.table[ext]; ok {
		return lang
	}
	return Unknown
}

package indexer

import (
	"path/filepath"
	"strings"
)

// LanguageUnknown 未映射扩展名的默认语言
const LanguageUnknown = "Unknown"

// 扩展名 → 语言静态表
var extensionLanguages = map[string]string{
	".go":    "Go",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".cjs":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".py":    "Python",
	".rb":    "Ruby",
	".java":  "Java",
	".kt":    "Kotlin",
	".scala": "Scala",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".cxx":   "C++",
	".hpp":   "C++",
	".cs":    "C#",
	".rs":    "Rust",
	".php":   "PHP",
	".swift": "Swift",
	".m":     "Objective-C",
	".dart":  "Dart",
	".lua":   "Lua",
	".r":     "R",
	".pl":    "Perl",
	".ex":    "Elixir",
	".exs":   "Elixir",
	".erl":   "Erlang",
	".hs":    "Haskell",
	".clj":   "Clojure",
	".sh":    "Shell",
	".bash":  "Shell",
	".zsh":   "Shell",
	".ps1":   "PowerShell",
	".sql":   "SQL",
	".html":  "HTML",
	".htm":   "HTML",
	".css":   "CSS",
	".scss":  "SCSS",
	".less":  "Less",
	".vue":   "Vue",
	".svelte": "Svelte",
	".json":  "JSON",
	".yaml":  "YAML",
	".yml":   "YAML",
	".toml":  "TOML",
	".xml":   "XML",
	".proto": "Protocol Buffers",
	".md":    "Markdown",
	".txt":   "Text",
	".rst":   "reStructuredText",
}

// 允许全文读取精确数行的扩展名白名单，其余走估算
var textExtensions = map[string]struct{}{
	".go": {}, ".js": {}, ".jsx": {}, ".mjs": {}, ".cjs": {}, ".ts": {}, ".tsx": {},
	".py": {}, ".rb": {}, ".java": {}, ".kt": {}, ".scala": {}, ".c": {}, ".h": {},
	".cpp": {}, ".cc": {}, ".cxx": {}, ".hpp": {}, ".cs": {}, ".rs": {}, ".php": {},
	".swift": {}, ".dart": {}, ".lua": {}, ".r": {}, ".pl": {}, ".ex": {}, ".exs": {},
	".erl": {}, ".hs": {}, ".clj": {}, ".sh": {}, ".bash": {}, ".zsh": {}, ".ps1": {},
	".sql": {}, ".html": {}, ".htm": {}, ".css": {}, ".scss": {}, ".less": {},
	".vue": {}, ".svelte": {}, ".json": {}, ".yaml": {}, ".yml": {}, ".toml": {},
	".xml": {}, ".proto": {}, ".md": {}, ".txt": {}, ".rst": {},
}

// 无条件跳过的路径片段（构建产物 / 依赖 / VCS）
var skipPatterns = []string{
	"node_modules/",
	"vendor/",
	".git/",
	".svn/",
	".hg/",
	"dist/",
	"build/",
	"out/",
	"target/",
	".next/",
	".nuxt/",
	"__pycache__/",
	".idea/",
	".vscode/",
	"coverage/",
	"bower_components/",
	".min.js",
	".min.css",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"go.sum",
	"Cargo.lock",
	"composer.lock",
	"Gemfile.lock",
}

// includeTests=false 时额外跳过的测试路径片段
var testPatterns = []string{
	"_test.go",
	".test.",
	".spec.",
	"/test/",
	"/tests/",
	"/__tests__/",
	"/testdata/",
	"/spec/",
}

// includeDocs=false 时额外跳过的文档路径片段
var docPathPatterns = []string{
	"/docs/",
	"/doc/",
	"LICENSE",
	"CHANGELOG",
	"CONTRIBUTING",
	"CODE_OF_CONDUCT",
}

var docExtensions = map[string]struct{}{
	".md":  {},
	".txt": {},
	".rst": {},
}

// Classify 根据扩展名判定语言
func Classify(path string) (language, extension string) {
	extension = strings.ToLower(filepath.Ext(path))
	language, ok := extensionLanguages[extension]
	if !ok {
		language = LanguageUnknown
	}
	return language, extension
}

// IsText 是否允许全文读取
func IsText(extension string) bool {
	_, ok := textExtensions[extension]
	return ok
}

// ShouldSkip 跳过规则。路径统一按 / 分隔比较，前缀目录也要能匹配。
func ShouldSkip(path string, includeTests, includeDocs bool) bool {
	normalized := "/" + strings.ToLower(strings.TrimPrefix(path, "/"))

	for _, pattern := range skipPatterns {
		if strings.Contains(normalized, strings.ToLower(pattern)) {
			return true
		}
	}

	if !includeTests {
		for _, pattern := range testPatterns {
			if strings.Contains(normalized, pattern) {
				return true
			}
		}
	}

	if !includeDocs {
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := docExtensions[ext]; ok {
			return true
		}
		upper := "/" + strings.ToUpper(strings.TrimPrefix(path, "/"))
		for _, pattern := range docPathPatterns {
			if strings.Contains(upper, strings.ToUpper(pattern)) {
				return true
			}
		}
	}

	return false
}

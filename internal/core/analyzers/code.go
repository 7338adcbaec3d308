package analyzers

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codelens/backend/internal/config"
	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/domain"
)

// languageByExt maps file extensions to the language reported on the
// dashboard. Unknown extensions are counted as "Other".
var languageByExt = map[string]string{
	".c":     "C",
	".cc":    "C++",
	".cpp":   "C++",
	".cs":    "C#",
	".css":   "CSS",
	".ex":    "Elixir",
	".exs":   "Elixir",
	".go":    "Go",
	".h":     "C",
	".hpp":   "C++",
	".html":  "HTML",
	".java":  "Java",
	".js":    "JavaScript",
	".json":  "JSON",
	".jsx":   "JavaScript",
	".kt":    "Kotlin",
	".md":    "Markdown",
	".php":   "PHP",
	".py":    "Python",
	".rb":    "Ruby",
	".rs":    "Rust",
	".scala": "Scala",
	".scss":  "CSS",
	".sh":    "Shell",
	".sql":   "SQL",
	".swift": "Swift",
	".tf":    "HCL",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".yaml":  "YAML",
	".yml":   "YAML",
}

// markupLanguages are counted but excluded from the branch-density signal.
var markupLanguages = map[string]struct{}{
	"CSS":      {},
	"HTML":     {},
	"JSON":     {},
	"Markdown": {},
	"YAML":     {},
}

// branchMarkers is the rough token set behind the complexity signal. It
// deliberately overcounts rather than parsing each language.
var branchMarkers = []string{"if ", "for ", "while ", "case ", "catch ", "elif ", "except ", "&&", "||"}

const largestFilesReported = 5

type codeAnalyzer struct {
	workspaceRoot string
	maxFiles      int
	maxFileSize   int64
}

func NewCodeAnalyzer(workspaceRoot string, cfg config.CodeConfig) ports.Analyzer {
	return &codeAnalyzer{
		workspaceRoot: workspaceRoot,
		maxFiles:      cfg.MaxFiles,
		maxFileSize:   cfg.MaxFileSize,
	}
}

func (a *codeAnalyzer) Stage() domain.AnalysisStage {
	return domain.StageCode
}

type languageStat struct {
	files int
	lines int
}

type fileStat struct {
	path  string
	lines int
}

// Analyze walks the project tree and reports per-language file and line
// counts, the largest files and a branch-density complexity signal.
func (a *codeAnalyzer) Analyze(ctx context.Context, project *domain.Project) (domain.JSONB, error) {
	root := resolveRoot(a.workspaceRoot, project.Path)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project tree not found at %s", root)
	}

	languages := make(map[string]*languageStat)
	var files []fileStat
	totalFiles := 0
	totalLines := 0
	branchPoints := 0
	skipped := 0
	truncated := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			skipped++
			return nil
		}
		if d.IsDir() {
			if path != root && skippableDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if a.maxFiles > 0 && totalFiles >= a.maxFiles {
			truncated = true
			return filepath.SkipAll
		}

		info, err := d.Info()
		if err != nil {
			skipped++
			return nil
		}
		if !info.Mode().IsRegular() || (a.maxFileSize > 0 && info.Size() > a.maxFileSize) {
			skipped++
			return nil
		}

		language, known := languageByExt[strings.ToLower(filepath.Ext(path))]
		if !known {
			language = "Other"
		}

		data, err := os.ReadFile(path)
		if err != nil {
			skipped++
			return nil
		}
		lines := countLines(data)

		stat := languages[language]
		if stat == nil {
			stat = &languageStat{}
			languages[language] = stat
		}
		stat.files++
		stat.lines += lines
		totalFiles++
		totalLines += lines

		if _, markup := markupLanguages[language]; known && !markup {
			branchPoints += countBranchPoints(data)
		}

		if rel, err := filepath.Rel(root, path); err == nil {
			files = append(files, fileStat{path: rel, lines: lines})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].lines > files[j].lines })
	largest := make([]interface{}, 0, largestFilesReported)
	for i, f := range files {
		if i >= largestFilesReported {
			break
		}
		largest = append(largest, map[string]interface{}{"path": f.path, "lines": f.lines})
	}

	langResult := make(map[string]interface{}, len(languages))
	for name, stat := range languages {
		langResult[name] = map[string]interface{}{"files": stat.files, "lines": stat.lines}
	}

	density := 0.0
	if totalLines > 0 {
		density = float64(branchPoints) * 1000 / float64(totalLines)
	}

	return domain.JSONB{
		"total_files":    totalFiles,
		"total_lines":    totalLines,
		"languages":      langResult,
		"largest_files":  largest,
		"branch_points":  branchPoints,
		"branch_density": density,
		"skipped_files":  skipped,
		"truncated":      truncated,
	}, nil
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	lines := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		lines++
	}
	return lines
}

func countBranchPoints(data []byte) int {
	content := string(data)
	points := 0
	for _, marker := range branchMarkers {
		points += strings.Count(content, marker)
	}
	return points
}

package analyzers

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/domain"
)

type docsAnalyzer struct {
	workspaceRoot string
}

func NewDocsAnalyzer(workspaceRoot string) ports.Analyzer {
	return &docsAnalyzer{workspaceRoot: workspaceRoot}
}

func (a *docsAnalyzer) Stage() domain.AnalysisStage {
	return domain.StageDocs
}

// Analyze measures how documented a project is: README substance, docs/
// coverage and the usual top-level hygiene files.
func (a *docsAnalyzer) Analyze(ctx context.Context, project *domain.Project) (domain.JSONB, error) {
	root := resolveRoot(a.workspaceRoot, project.Path)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project tree not found at %s", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	readmeName := ""
	var docsDirs []string
	license := false
	contributing := false
	changelog := false
	conduct := false

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			lower := strings.ToLower(name)
			if lower == "docs" || lower == "doc" {
				docsDirs = append(docsDirs, filepath.Join(root, name))
			}
			continue
		}
		upper := strings.ToUpper(name)
		switch {
		case strings.HasPrefix(upper, "README") && readmeName == "":
			readmeName = name
		case strings.HasPrefix(upper, "LICENSE") || strings.HasPrefix(upper, "COPYING"):
			license = true
		case strings.HasPrefix(upper, "CONTRIBUTING"):
			contributing = true
		case strings.HasPrefix(upper, "CHANGELOG") || strings.HasPrefix(upper, "HISTORY"):
			changelog = true
		case strings.HasPrefix(upper, "CODE_OF_CONDUCT"):
			conduct = true
		}
	}

	readme := map[string]interface{}{"present": false}
	if readmeName != "" {
		if data, err := os.ReadFile(filepath.Join(root, readmeName)); err == nil {
			words, headings, codeBlocks := analyzeMarkdown(data)
			readme = map[string]interface{}{
				"present":     true,
				"path":        readmeName,
				"words":       words,
				"headings":    headings,
				"code_blocks": codeBlocks,
			}
		}
	}

	docFiles := 0
	docWords := 0
	for _, dir := range docsDirs {
		files, words, err := a.measureDocsTree(ctx, dir)
		if err != nil {
			return nil, err
		}
		docFiles += files
		docWords += words
	}

	return domain.JSONB{
		"readme": readme,
		"docs_dir": map[string]interface{}{
			"present": len(docsDirs) > 0,
			"files":   docFiles,
			"words":   docWords,
		},
		"license":         license,
		"contributing":    contributing,
		"changelog":       changelog,
		"code_of_conduct": conduct,
		"score":           docsScore(readmeName != "", len(docsDirs) > 0, license, contributing, changelog),
	}, nil
}

func (a *docsAnalyzer) measureDocsTree(ctx context.Context, dir string) (int, int, error) {
	files := 0
	words := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil || d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".rst", ".txt", ".adoc":
		default:
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		files++
		words += len(strings.Fields(string(data)))
		return nil
	})
	return files, words, err
}

func analyzeMarkdown(data []byte) (words, headings, codeBlocks int) {
	text := string(data)
	words = len(strings.Fields(text))
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			headings++
		}
	}
	codeBlocks = strings.Count(text, "```") / 2
	return words, headings, codeBlocks
}

// docsScore is a coarse 0-100 hygiene score for the dashboard gauge.
func docsScore(readme, docsDir, license, contributing, changelog bool) int {
	score := 0
	if readme {
		score += 40
	}
	if docsDir {
		score += 30
	}
	if license {
		score += 10
	}
	if contributing {
		score += 10
	}
	if changelog {
		score += 10
	}
	return score
}

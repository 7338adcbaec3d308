package analyzers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codelens/backend/internal/config"
	"github.com/codelens/backend/internal/domain"
)

func TestCodeAnalyzerCounts(t *testing.T) {
	root := t.TempDir()
	writeTree(t, filepath.Join(root, "proj"), map[string]string{
		"main.go":             "package main\n\nfunc main() {\n\tfor i := 0; i < 3; i++ {\n\t\tif i > 0 {\n\t\t\tprintln(i)\n\t\t}\n\t}\n}\n",
		"web/app.js":          "function run(x) {\n  if (x) { go(); }\n}\n",
		"README.md":           "# Demo\n\nif anyone reads this\n",
		"data.xyz":            "a\nb\n",
		"node_modules/dep.js": "if (a) { b(); }\n",
		".git/config":         "[core]\n",
	})

	analyzer := NewCodeAnalyzer(root, config.CodeConfig{})
	require.Equal(t, domain.StageCode, analyzer.Stage())

	result, err := analyzer.Analyze(context.Background(), &domain.Project{Name: "demo", Path: "proj"})
	require.NoError(t, err)

	// node_modules and .git never contribute to any count.
	require.Equal(t, 4, result["total_files"])
	require.Equal(t, 17, result["total_lines"])
	require.Equal(t, 0, result["skipped_files"])
	require.Equal(t, false, result["truncated"])

	languages := result["languages"].(map[string]interface{})
	require.Len(t, languages, 4)
	require.Equal(t, map[string]interface{}{"files": 1, "lines": 9}, languages["Go"])
	require.Equal(t, map[string]interface{}{"files": 1, "lines": 3}, languages["JavaScript"])
	require.Equal(t, map[string]interface{}{"files": 1, "lines": 3}, languages["Markdown"])
	require.Equal(t, map[string]interface{}{"files": 1, "lines": 2}, languages["Other"])

	// Markdown and unknown extensions carry branch-looking text but only real
	// source counts: "for " and "if " in main.go, "if " in app.js.
	require.Equal(t, 3, result["branch_points"])
	require.InDelta(t, 3.0*1000/17, result["branch_density"].(float64), 0.01)

	largest := result["largest_files"].([]interface{})
	require.NotEmpty(t, largest)
	top := largest[0].(map[string]interface{})
	require.Equal(t, "main.go", top["path"])
	require.Equal(t, 9, top["lines"])
}

func TestCodeAnalyzerTruncatesAtFileCap(t *testing.T) {
	root := t.TempDir()
	writeTree(t, filepath.Join(root, "proj"), map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n",
		"c.go": "package c\n",
		"d.go": "package d\n",
	})

	analyzer := NewCodeAnalyzer(root, config.CodeConfig{MaxFiles: 2})
	result, err := analyzer.Analyze(context.Background(), &domain.Project{Path: "proj"})
	require.NoError(t, err)

	require.Equal(t, 2, result["total_files"])
	require.Equal(t, true, result["truncated"])
}

func TestCodeAnalyzerSkipsOversizeFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, filepath.Join(root, "proj"), map[string]string{
		"small.go": "package small\n",
		"big.go":   "package big\n// padding padding padding padding padding\n",
	})

	analyzer := NewCodeAnalyzer(root, config.CodeConfig{MaxFileSize: 20})
	result, err := analyzer.Analyze(context.Background(), &domain.Project{Path: "proj"})
	require.NoError(t, err)

	require.Equal(t, 1, result["total_files"])
	require.Equal(t, 1, result["skipped_files"])
}

func TestCodeAnalyzerMissingTree(t *testing.T) {
	analyzer := NewCodeAnalyzer(t.TempDir(), config.CodeConfig{})

	_, err := analyzer.Analyze(context.Background(), &domain.Project{Path: "ghost"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "project tree not found")
}

func TestCodeAnalyzerHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, filepath.Join(root, "proj"), map[string]string{"main.go": "package main\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	analyzer := NewCodeAnalyzer(root, config.CodeConfig{})
	_, err := analyzer.Analyze(ctx, &domain.Project{Path: "proj"})
	require.ErrorIs(t, err, context.Canceled)
}

// Package analyzers holds the deep-analysis stage collaborators. Each
// analyzer inspects one aspect of a registered project tree and returns a
// JSON-shaped result the runner merges into the task record.
package analyzers

import (
	"path/filepath"

	"github.com/codelens/backend/internal/config"
	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/infrastructure/logger"
)

// BuildPipeline assembles the analyzer chain in its fixed execution order:
// code, deployment, docs, then the optional llm pass.
func BuildPipeline(cfg config.AnalysisConfig, workspaceRoot string, log *logger.Logger) []ports.Analyzer {
	pipeline := []ports.Analyzer{
		NewCodeAnalyzer(workspaceRoot, cfg.Code),
		NewDeploymentAnalyzer(workspaceRoot),
		NewDocsAnalyzer(workspaceRoot),
	}
	if cfg.LLM.Enabled {
		pipeline = append(pipeline, NewLLMAnalyzer(workspaceRoot, cfg.LLM, log))
	}
	return pipeline
}

// resolveRoot locates a project tree on disk. Registered paths are
// workspace-relative unless absolute.
func resolveRoot(workspaceRoot, projectPath string) string {
	if filepath.IsAbs(projectPath) {
		return projectPath
	}
	return filepath.Join(workspaceRoot, projectPath)
}

// Directories no analyzer ever descends into.
var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".idea":        {},
	".next":        {},
	".venv":        {},
	"__pycache__":  {},
	"build":        {},
	"dist":         {},
	"node_modules": {},
	"target":       {},
	"vendor":       {},
}

func skippableDir(name string) bool {
	_, skip := skipDirs[name]
	return skip
}

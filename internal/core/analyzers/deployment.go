package analyzers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/domain"
)

// kubernetesKinds gates which decoded yaml documents count as manifests.
var kubernetesKinds = map[string]struct{}{
	"ConfigMap":               {},
	"CronJob":                 {},
	"DaemonSet":               {},
	"Deployment":              {},
	"HorizontalPodAutoscaler": {},
	"Ingress":                 {},
	"Job":                     {},
	"Namespace":               {},
	"Pod":                     {},
	"Secret":                  {},
	"Service":                 {},
	"StatefulSet":             {},
}

// manifestDirs are directory names whose yaml files are treated as
// Kubernetes manifest candidates.
var manifestDirs = map[string]struct{}{
	"charts":     {},
	"deploy":     {},
	"deployment": {},
	"helm":       {},
	"k8s":        {},
	"kubernetes": {},
	"manifests":  {},
}

type composeDocument struct {
	Services map[string]struct {
		Image string `yaml:"image"`
	} `yaml:"services"`
}

type manifestDocument struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
}

type workflowDocument struct {
	Name string `yaml:"name"`
}

type deploymentAnalyzer struct {
	workspaceRoot string
}

func NewDeploymentAnalyzer(workspaceRoot string) ports.Analyzer {
	return &deploymentAnalyzer{workspaceRoot: workspaceRoot}
}

func (a *deploymentAnalyzer) Stage() domain.AnalysisStage {
	return domain.StageDeployment
}

// Analyze detects how the project ships: container builds, compose stacks,
// Kubernetes manifests, CI pipelines and platform manifests.
func (a *deploymentAnalyzer) Analyze(ctx context.Context, project *domain.Project) (domain.JSONB, error) {
	root := resolveRoot(a.workspaceRoot, project.Path)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project tree not found at %s", root)
	}

	var dockerfiles []string
	var composeFiles []string
	var manifestCandidates []string
	var workflowFiles []string
	ciProviders := make(map[string]struct{})
	platforms := make(map[string]struct{})
	procfilePath := ""
	packageJSONPath := ""

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skippableDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()
		lower := strings.ToLower(name)

		switch {
		case lower == "dockerfile" || strings.HasPrefix(lower, "dockerfile."):
			dockerfiles = append(dockerfiles, rel)
		case isComposeFile(lower):
			composeFiles = append(composeFiles, rel)
		case name == "Procfile" && procfilePath == "":
			procfilePath = path
		case rel == "package.json":
			packageJSONPath = path
		case lower == "vercel.json":
			platforms["vercel"] = struct{}{}
		case lower == "netlify.toml":
			platforms["netlify"] = struct{}{}
		case lower == "fly.toml":
			platforms["fly.io"] = struct{}{}
		case lower == "render.yaml":
			platforms["render"] = struct{}{}
		case lower == "heroku.yml":
			platforms["heroku"] = struct{}{}
		case lower == ".gitlab-ci.yml":
			ciProviders["gitlab-ci"] = struct{}{}
		case name == "Jenkinsfile":
			ciProviders["jenkins"] = struct{}{}
		case lower == ".travis.yml":
			ciProviders["travis-ci"] = struct{}{}
		case strings.HasSuffix(rel, ".circleci/config.yml"):
			ciProviders["circleci"] = struct{}{}
		case isYAML(lower) && strings.Contains(rel, ".github/workflows/"):
			ciProviders["github-actions"] = struct{}{}
			workflowFiles = append(workflowFiles, path)
		case isYAML(lower) && isManifestCandidate(rel):
			manifestCandidates = append(manifestCandidates, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := domain.JSONB{
		"dockerfiles":      toInterfaceSlice(dockerfiles),
		"compose_files":    toInterfaceSlice(composeFiles),
		"compose_services": a.parseComposeServices(root, composeFiles),
		"kubernetes":       a.parseManifests(root, manifestCandidates),
		"ci_providers":     keysOf(ciProviders),
		"ci_workflows":     a.parseWorkflows(root, workflowFiles),
		"platforms":        keysOf(platforms),
	}

	if procfilePath != "" {
		if data, err := os.ReadFile(procfilePath); err == nil {
			result["procfile_processes"] = toInterfaceSlice(parseProcfile(data))
		}
	}
	if packageJSONPath != "" {
		if data, err := os.ReadFile(packageJSONPath); err == nil {
			result["package_json"] = parsePackageJSON(data)
		}
	}

	detected := len(dockerfiles) > 0 || len(composeFiles) > 0 || len(ciProviders) > 0 ||
		len(platforms) > 0 || procfilePath != "" ||
		len(result["kubernetes"].([]interface{})) > 0
	result["detected"] = detected

	return result, nil
}

func (a *deploymentAnalyzer) parseComposeServices(root string, files []string) []interface{} {
	services := []interface{}{}
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		var doc composeDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			continue
		}
		for name, svc := range doc.Services {
			services = append(services, map[string]interface{}{
				"name":  name,
				"image": svc.Image,
				"file":  rel,
			})
		}
	}
	return services
}

func (a *deploymentAnalyzer) parseManifests(root string, candidates []string) []interface{} {
	manifests := []interface{}{}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel, _ := filepath.Rel(root, path)

		// Manifests are frequently multi-document files.
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		for {
			var doc manifestDocument
			if err := decoder.Decode(&doc); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				break
			}
			if _, known := kubernetesKinds[doc.Kind]; !known {
				continue
			}
			manifests = append(manifests, map[string]interface{}{
				"path": filepath.ToSlash(rel),
				"kind": doc.Kind,
				"name": doc.Metadata.Name,
			})
		}
	}
	return manifests
}

func (a *deploymentAnalyzer) parseWorkflows(root string, files []string) []interface{} {
	workflows := []interface{}{}
	for _, path := range files {
		rel, _ := filepath.Rel(root, path)
		entry := map[string]interface{}{"path": filepath.ToSlash(rel)}
		if data, err := os.ReadFile(path); err == nil {
			var doc workflowDocument
			if yaml.Unmarshal(data, &doc) == nil && doc.Name != "" {
				entry["name"] = doc.Name
			}
		}
		workflows = append(workflows, entry)
	}
	return workflows
}

func parsePackageJSON(data []byte) map[string]interface{} {
	scripts := []interface{}{}
	gjson.GetBytes(data, "scripts").ForEach(func(key, _ gjson.Result) bool {
		scripts = append(scripts, key.String())
		return true
	})

	info := map[string]interface{}{
		"name":    gjson.GetBytes(data, "name").String(),
		"scripts": scripts,
	}
	if node := gjson.GetBytes(data, "engines.node").String(); node != "" {
		info["engines_node"] = node
	}
	return info
}

func parseProcfile(data []byte) []string {
	var processes []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, ":"); idx > 0 {
			processes = append(processes, strings.TrimSpace(line[:idx]))
		}
	}
	return processes
}

func isComposeFile(lower string) bool {
	switch lower {
	case "docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml":
		return true
	}
	return false
}

func isYAML(lower string) bool {
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

// isManifestCandidate limits yaml decoding to files that plausibly hold
// Kubernetes objects: anything under a manifest directory, plus root-level
// yaml files.
func isManifestCandidate(rel string) bool {
	parts := strings.Split(rel, "/")
	if len(parts) == 1 {
		return true
	}
	for _, part := range parts[:len(parts)-1] {
		if _, ok := manifestDirs[strings.ToLower(part)]; ok {
			return true
		}
	}
	return false
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func keysOf(set map[string]struct{}) []interface{} {
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return toInterfaceSlice(names)
}

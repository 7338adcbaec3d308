package analyzers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codelens/backend/internal/domain"
)

const composeFixture = `services:
  web:
    image: nginx:alpine
    ports:
      - "8080:80"
  db:
    image: postgres:16
`

const manifestFixture = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: demo-api
---
apiVersion: v1
kind: Service
metadata:
  name: demo-svc
`

func TestDeploymentAnalyzerDetectsStack(t *testing.T) {
	root := t.TempDir()
	writeTree(t, filepath.Join(root, "proj"), map[string]string{
		"Dockerfile":               "FROM golang:1.22\n",
		"docker/Dockerfile.dev":    "FROM golang:1.22\n",
		"docker-compose.yml":       composeFixture,
		"k8s/deployment.yaml":      manifestFixture,
		"k8s/notes.yaml":           "just: notes\n",
		"config.yaml":              "port: 8080\n",
		".github/workflows/ci.yml": "name: CI\non: push\n",
		"Procfile":                 "web: bin/server\nworker: bin/worker\n# release: skipped\n",
		"package.json":             `{"name":"demo-ui","scripts":{"build":"vite build","test":"vitest"},"engines":{"node":">=20"}}`,
		"vercel.json":              "{}",
		"Jenkinsfile":              "pipeline {}\n",
	})

	analyzer := NewDeploymentAnalyzer(root)
	require.Equal(t, domain.StageDeployment, analyzer.Stage())

	result, err := analyzer.Analyze(context.Background(), &domain.Project{Path: "proj"})
	require.NoError(t, err)

	require.Equal(t, true, result["detected"])
	require.Equal(t, []interface{}{"Dockerfile", "docker/Dockerfile.dev"}, result["dockerfiles"])
	require.Equal(t, []interface{}{"docker-compose.yml"}, result["compose_files"])

	services := result["compose_services"].([]interface{})
	require.Len(t, services, 2)
	images := map[string]string{}
	for _, raw := range services {
		svc := raw.(map[string]interface{})
		images[svc["name"].(string)] = svc["image"].(string)
		require.Equal(t, "docker-compose.yml", svc["file"])
	}
	require.Equal(t, map[string]string{"web": "nginx:alpine", "db": "postgres:16"}, images)

	// Only documents with a recognized kind count; k8s/notes.yaml and the
	// root-level config.yaml decode to nothing.
	manifests := result["kubernetes"].([]interface{})
	require.Len(t, manifests, 2)
	first := manifests[0].(map[string]interface{})
	require.Equal(t, "k8s/deployment.yaml", first["path"])
	require.Equal(t, "Deployment", first["kind"])
	require.Equal(t, "demo-api", first["name"])
	second := manifests[1].(map[string]interface{})
	require.Equal(t, "Service", second["kind"])
	require.Equal(t, "demo-svc", second["name"])

	require.Equal(t, []interface{}{"github-actions", "jenkins"}, result["ci_providers"])
	workflows := result["ci_workflows"].([]interface{})
	require.Len(t, workflows, 1)
	workflow := workflows[0].(map[string]interface{})
	require.Equal(t, ".github/workflows/ci.yml", workflow["path"])
	require.Equal(t, "CI", workflow["name"])

	require.Equal(t, []interface{}{"vercel"}, result["platforms"])
	require.Equal(t, []interface{}{"web", "worker"}, result["procfile_processes"])

	pkg := result["package_json"].(map[string]interface{})
	require.Equal(t, "demo-ui", pkg["name"])
	require.Equal(t, []interface{}{"build", "test"}, pkg["scripts"])
	require.Equal(t, ">=20", pkg["engines_node"])
}

func TestDeploymentAnalyzerNothingToFind(t *testing.T) {
	root := t.TempDir()
	writeTree(t, filepath.Join(root, "proj"), map[string]string{
		"main.go": "package main\n",
	})

	result, err := NewDeploymentAnalyzer(root).Analyze(context.Background(), &domain.Project{Path: "proj"})
	require.NoError(t, err)

	require.Equal(t, false, result["detected"])
	require.Empty(t, result["dockerfiles"])
	require.Empty(t, result["compose_files"])
	require.Empty(t, result["kubernetes"])
	require.Empty(t, result["ci_providers"])
	require.Empty(t, result["platforms"])
	require.NotContains(t, result, "procfile_processes")
	require.NotContains(t, result, "package_json")
}

func TestManifestCandidateSelection(t *testing.T) {
	require.True(t, isManifestCandidate("app.yaml"))
	require.True(t, isManifestCandidate("deploy/service.yml"))
	require.True(t, isManifestCandidate("helm/templates/api.yaml"))
	require.False(t, isManifestCandidate("src/config/app.yaml"))
}

func TestParseProcfile(t *testing.T) {
	processes := parseProcfile([]byte("web: bin/server\n\n# comment\nworker: bin/worker\nbroken line\n"))
	require.Equal(t, []string{"web", "worker"}, processes)
}

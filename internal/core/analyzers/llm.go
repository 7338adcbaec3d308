package analyzers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"golang.org/x/sync/errgroup"

	"github.com/codelens/backend/internal/config"
	"github.com/codelens/backend/internal/core/ports"
	"github.com/codelens/backend/internal/domain"
	"github.com/codelens/backend/internal/infrastructure/logger"
)

var ErrNoProviders = errors.New("llm: no providers configured")

const (
	defaultAnthropicModel = "claude-3-5-sonnet-latest"
	defaultOpenAIModel    = "gpt-4o"

	providerMaxTokens = 2048
	digestFileCap     = 4096

	llmSystemPrompt = "You are a senior software architect reviewing a project. " +
		"Given the repository digest, assess the architecture, primary components, " +
		"code health risks and deployment readiness. Be specific and concise."
)

// llmProvider is one configured model endpoint. Providers are queried
// concurrently and independently; one failing never aborts the others.
type llmProvider interface {
	name() string
	model() string
	analyze(ctx context.Context, system, prompt string) (string, error)
}

// ==================== Anthropic ====================

type anthropicProvider struct {
	client    anthropicsdk.Client
	modelName string
}

func newAnthropicProvider(apiKey, model string) *anthropicProvider {
	return &anthropicProvider{
		client:    anthropicsdk.NewClient(anthropicoption.WithAPIKey(apiKey)),
		modelName: model,
	}
}

func (p *anthropicProvider) name() string  { return "anthropic" }
func (p *anthropicProvider) model() string { return p.modelName }

func (p *anthropicProvider) analyze(ctx context.Context, system, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.modelName),
		MaxTokens: providerMaxTokens,
		System:    []anthropicsdk.TextBlockParam{{Text: system}},
		Messages: []anthropicsdk.MessageParam{
			{
				Role:    anthropicsdk.MessageParamRoleUser,
				Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(prompt)},
			},
		},
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	return sb.String(), nil
}

// ==================== OpenAI ====================

type openaiProvider struct {
	client    openai.Client
	modelName string
}

func newOpenAIProvider(apiKey, model string) *openaiProvider {
	return &openaiProvider{
		client:    openai.NewClient(openaioption.WithAPIKey(apiKey)),
		modelName: model,
	}
}

func (p *openaiProvider) name() string  { return "openai" }
func (p *openaiProvider) model() string { return p.modelName }

func (p *openaiProvider) analyze(ctx context.Context, system, prompt string) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(p.modelName),
		MaxCompletionTokens: openai.Int(providerMaxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

// ==================== Orchestrator ====================

type llmAnalyzer struct {
	workspaceRoot  string
	providers      []llmProvider
	timeout        time.Duration
	maxDigestBytes int
	log            *logger.Logger
}

func NewLLMAnalyzer(workspaceRoot string, cfg config.LLMConfig, log *logger.Logger) ports.Analyzer {
	var providers []llmProvider
	if cfg.AnthropicAPIKey != "" {
		model := cfg.AnthropicModel
		if model == "" {
			model = defaultAnthropicModel
		}
		providers = append(providers, newAnthropicProvider(cfg.AnthropicAPIKey, model))
	}
	if cfg.OpenAIAPIKey != "" {
		model := cfg.OpenAIModel
		if model == "" {
			model = defaultOpenAIModel
		}
		providers = append(providers, newOpenAIProvider(cfg.OpenAIAPIKey, model))
	}

	return &llmAnalyzer{
		workspaceRoot:  workspaceRoot,
		providers:      providers,
		timeout:        cfg.Timeout,
		maxDigestBytes: cfg.MaxDigestBytes,
		log:            log,
	}
}

func (a *llmAnalyzer) Stage() domain.AnalysisStage {
	return domain.StageLLM
}

// Analyze builds a compact repository digest and fans it out to every
// configured provider concurrently. Per-provider failures land in the result;
// the stage itself fails only when no provider answers.
func (a *llmAnalyzer) Analyze(ctx context.Context, project *domain.Project) (domain.JSONB, error) {
	if len(a.providers) == 0 {
		return nil, ErrNoProviders
	}

	digest, err := a.buildDigest(ctx, project)
	if err != nil {
		return nil, err
	}

	results := make([]interface{}, len(a.providers))
	failures := 0
	var mu sync.Mutex

	g, groupCtx := errgroup.WithContext(ctx)
	for i, provider := range a.providers {
		i, provider := i, provider
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(groupCtx, a.timeout)
			defer cancel()

			started := time.Now()
			text, err := provider.analyze(callCtx, llmSystemPrompt, digest)
			entry := map[string]interface{}{
				"provider":    provider.name(),
				"model":       provider.model(),
				"duration_ms": time.Since(started).Milliseconds(),
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.log.Warnw("llm_provider_failed",
					"provider", provider.name(),
					"model", provider.model(),
					"error", err,
				)
				entry["error"] = err.Error()
				failures++
			} else {
				entry["analysis"] = text
			}
			results[i] = entry
			// Provider outcomes are recorded, never returned: one failing
			// model must not cancel the rest of the group.
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(a.providers) {
		return nil, fmt.Errorf("all %d language model providers failed", failures)
	}

	return domain.JSONB{
		"providers":    results,
		"succeeded":    len(a.providers) - failures,
		"failed":       failures,
		"digest_bytes": len(digest),
	}, nil
}

// digestPriorityFiles are included in the digest before any source file.
var digestPriorityFiles = []string{
	"go.mod", "package.json", "pyproject.toml", "Cargo.toml", "pom.xml",
	"build.gradle", "Gemfile", "requirements.txt", "Dockerfile",
	"docker-compose.yml", "Makefile",
}

type digestCandidate struct {
	rel   string
	depth int
}

// buildDigest assembles the prompt payload: project header, a shallow layout
// outline, build/deploy manifests, the README and as many shallow source
// files as fit the byte budget.
func (a *llmAnalyzer) buildDigest(ctx context.Context, project *domain.Project) (string, error) {
	root := resolveRoot(a.workspaceRoot, project.Path)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return "", fmt.Errorf("project tree not found at %s", root)
	}

	var outline []string
	var sources []digestCandidate
	readmeRel := ""

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/")

		if d.IsDir() {
			if skippableDir(d.Name()) {
				return filepath.SkipDir
			}
			if depth < 2 && len(outline) < 150 {
				outline = append(outline, rel+"/")
			}
			return nil
		}

		if depth < 2 && len(outline) < 150 {
			outline = append(outline, rel)
		}
		if depth == 0 && readmeRel == "" && strings.HasPrefix(strings.ToUpper(d.Name()), "README") {
			readmeRel = rel
			return nil
		}

		language, known := languageByExt[strings.ToLower(filepath.Ext(path))]
		if !known {
			return nil
		}
		if _, markup := markupLanguages[language]; markup {
			return nil
		}
		sources = append(sources, digestCandidate{rel: rel, depth: depth})
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].depth != sources[j].depth {
			return sources[i].depth < sources[j].depth
		}
		return sources[i].rel < sources[j].rel
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", project.Description)
	}
	sb.WriteString("\nLayout:\n")
	sort.Strings(outline)
	for _, line := range outline {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	if readmeRel != "" {
		a.appendFile(&sb, root, readmeRel)
	}
	for _, name := range digestPriorityFiles {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			a.appendFile(&sb, root, name)
		}
	}
	for _, candidate := range sources {
		if sb.Len() >= a.maxDigestBytes {
			break
		}
		a.appendFile(&sb, root, candidate.rel)
	}

	digest := sb.String()
	if len(digest) > a.maxDigestBytes {
		digest = digest[:a.maxDigestBytes]
	}
	return digest, nil
}

func (a *llmAnalyzer) appendFile(sb *strings.Builder, root, rel string) {
	if sb.Len() >= a.maxDigestBytes {
		return
	}
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return
	}
	content := string(data)
	if len(content) > digestFileCap {
		content = content[:digestFileCap] + "\n...[truncated]"
	}
	fmt.Fprintf(sb, "\n--- FILE: %s ---\n%s\n", rel, content)
}

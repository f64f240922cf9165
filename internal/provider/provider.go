package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MEKXH/glyphx/internal/config"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

type providerName string

const (
	providerOpenAI     providerName = "openai"
	providerOpenRouter providerName = "openrouter"
	providerDeepSeek   providerName = "deepseek"
	providerClaude     providerName = "claude"
	providerOllama     providerName = "ollama"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	deepSeekBaseURL   = "https://api.deepseek.com/v1"
	ollamaBaseURL     = "http://localhost:11434"
)

// envKeys are consulted when a provider has no api_key in config.
var envKeys = map[providerName]string{
	providerOpenAI:     "OPENAI_API_KEY",
	providerOpenRouter: "OPENROUTER_API_KEY",
	providerDeepSeek:   "DEEPSEEK_API_KEY",
	providerClaude:     "ANTHROPIC_API_KEY",
}

// NewChatModel creates the chat model selected by agent.provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	name, pcfg, err := resolveProvider(cfg)
	if err != nil {
		return nil, err
	}
	a := cfg.Agent

	switch name {
	case providerClaude:
		c := &claude.Config{
			APIKey:      pcfg.APIKey,
			Model:       a.Model,
			MaxTokens:   a.MaxTokens,
			Temperature: toFloat32Ptr(a.Temperature),
		}
		if pcfg.BaseURL != "" {
			c.BaseURL = &pcfg.BaseURL
		}
		return claude.NewChatModel(ctx, c)
	case providerOllama:
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: pcfg.BaseURL,
			Model:   a.Model,
		})
	default:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:       a.Model,
			APIKey:      pcfg.APIKey,
			BaseURL:     pcfg.BaseURL,
			Temperature: toFloat32Ptr(a.Temperature),
			MaxTokens:   toIntPtr(a.MaxTokens),
		})
	}
}

// resolveProvider picks the provider section and fills in base URLs and
// keys from the environment.
func resolveProvider(cfg *config.Config) (providerName, config.ProviderConfig, error) {
	name := providerName(strings.ToLower(strings.TrimSpace(cfg.Agent.Provider)))
	p := cfg.Providers

	var pcfg config.ProviderConfig
	switch name {
	case providerOpenAI:
		pcfg = p.OpenAI
	case providerOpenRouter:
		pcfg = p.OpenRouter
		if pcfg.BaseURL == "" {
			pcfg.BaseURL = openRouterBaseURL
		}
	case providerDeepSeek:
		pcfg = p.DeepSeek
		if pcfg.BaseURL == "" {
			pcfg.BaseURL = deepSeekBaseURL
		}
	case providerClaude:
		pcfg = p.Claude
	case providerOllama:
		pcfg = p.Ollama
		if pcfg.BaseURL == "" {
			pcfg.BaseURL = ollamaBaseURL
		}
		return name, pcfg, nil
	default:
		return "", pcfg, fmt.Errorf("unknown provider %q", cfg.Agent.Provider)
	}

	if pcfg.APIKey == "" {
		pcfg.APIKey = strings.TrimSpace(os.Getenv(envKeys[name]))
	}
	if pcfg.APIKey == "" {
		return "", pcfg, fmt.Errorf("provider %s: api_key not configured (set providers.%s.api_key or %s)", name, name, envKeys[name])
	}
	return name, pcfg, nil
}

func toFloat32Ptr(f float64) *float32 {
	v := float32(f)
	return &v
}

func toIntPtr(i int) *int {
	return &i
}

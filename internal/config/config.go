package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/miaoge/backend/internal/storage"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Storage StorageConfig
	Persona PersonaConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	cfg.AI.applyArkFallback()
	if cfg.AI.HistoryLimit < 1 {
		cfg.AI.HistoryLimit = 1
	}

	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string        `env:"AI_PROVIDER" envDefault:"openai"`
	APIKey      string        `env:"AI_API_KEY"`
	BaseURL     string        `env:"AI_BASE_URL" envDefault:"https://gemini.chaohua.me/v1"`
	Model       string        `env:"AI_MODEL" envDefault:"gemini-2.0-flash-exp"`
	Timeout     time.Duration `env:"AI_TIMEOUT" envDefault:"0s"`
	MaxTokens   int           `env:"AI_MAX_TOKENS"`
	WebSearch   bool          `env:"AI_WEB_SEARCH" envDefault:"true"`
	SearchTool  string        `env:"AI_SEARCH_TOOL" envDefault:"googleSearch"`
	ArkAPIKey   string        `env:"ARK_API_KEY"`
	AccessKey   string        `env:"ARK_ACCESS_KEY"`
	SecretKey   string        `env:"ARK_SECRET_KEY"`
	Region      string        `env:"ARK_REGION" envDefault:"cn-beijing"`
	ArkBaseURL  string        `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkModel    string        `env:"ARK_MODEL"`

	// HistoryLimit 发送给模型的历史消息条数。
	HistoryLimit int `env:"AI_HISTORY_LIMIT" envDefault:"10"`
	// EmotionTagFromCategory 直接用分类结果作为情绪标签，而不是从前缀短语反推。
	EmotionTagFromCategory bool `env:"AI_EMOTION_TAG_FROM_CATEGORY" envDefault:"false"`
}

func (c *AIConfig) applyArkFallback() {
	if c.Provider == "ark" && c.ArkModel != "" {
		c.Model = c.ArkModel
	}
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case "ark":
		return c.Model != "" && (c.ArkAPIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return c.Model != "" && c.APIKey != ""
	}
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失", c.Provider)
	}

	var maxTokens *int
	if c.MaxTokens > 0 {
		val := c.MaxTokens
		maxTokens = &val
	}

	switch c.Provider {
	case "ark":
		cfg := &ark.ChatModelConfig{
			BaseURL:   c.ArkBaseURL,
			Region:    c.Region,
			APIKey:    c.ArkAPIKey,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Model:     c.Model,
			MaxTokens: maxTokens,
		}
		if c.Timeout > 0 {
			timeout := c.Timeout
			cfg.Timeout = &timeout
		}
		return ark.NewChatModel(ctx, cfg)
	case "openai", "":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:    c.APIKey,
			BaseURL:   c.BaseURL,
			Model:     c.Model,
			Timeout:   c.Timeout,
			MaxTokens: maxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown AI provider %q", c.Provider)
	}
}

// StorageConfig 描述会话持久化后端。
type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" envDefault:"file"`
	Path   string `env:"STORAGE_PATH" envDefault:"data"`
}

// Slot converts the config into the storage package's form.
func (c StorageConfig) Slot() storage.Config {
	return storage.Config{Driver: c.Driver, Path: c.Path}
}

// PersonaConfig 可选的角色覆盖文件。
type PersonaConfig struct {
	File string `env:"PERSONA_FILE"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Debug bool `env:"LOG_DEBUG" envDefault:"false"`
}

package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Client ClientConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Client: client}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
	Verbose        bool
}

// loadServerConfig 解析服务器监听地址与限流参数。
func loadServerConfig() (ServerConfig, error) {
	addr, err := parseAddr(os.Getenv("PORT"))
	if err != nil {
		return ServerConfig{}, err
	}

	rps, err := parseFloatEnv("RATE_LIMIT_RPS", 5)
	if err != nil {
		return ServerConfig{}, err
	}
	if rps < 0 {
		return ServerConfig{}, fmt.Errorf("invalid RATE_LIMIT_RPS value: %v", rps)
	}

	burst, err := parseIntEnv("RATE_LIMIT_BURST", 10)
	if err != nil {
		return ServerConfig{}, err
	}
	if burst < 1 {
		burst = 1
	}

	verbose, err := parseBoolEnv("LOG_VERBOSE", false)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{Addr: addr, RateLimitRPS: rps, RateLimitBurst: burst, Verbose: verbose}, nil
}

func parseAddr(raw string) (string, error) {
	port := strings.TrimSpace(raw)
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
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	HistoryLimit int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing Ark credentials: provide ARK_API_KEY + Model or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		val := 0.1
		temperature = &val
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens == nil {
		val := 500
		maxTokens = &val
	}

	historyLimit, err := parseIntEnv("AI_HISTORY_LIMIT", 3)
	if err != nil {
		return AIConfig{}, err
	}
	if historyLimit < 0 {
		historyLimit = 0
	}

	return AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("Model")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		HistoryLimit: historyLimit,
	}, nil
}

// ClientConfig 描述终端客户端配置，命令行参数可覆盖。
type ClientConfig struct {
	Endpoint    string
	Timeout     time.Duration
	Store       string
	StorePath   string
	StoreQuota  int64
	DisplayName string
}

func loadClientConfig() (ClientConfig, error) {
	timeout := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("MATHGPT_TIMEOUT")); raw != "" {
		val, err := time.ParseDuration(raw)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("invalid MATHGPT_TIMEOUT value %q: %w", raw, err)
		}
		timeout = val
	}

	quota, err := parseIntEnv("MATHGPT_STORE_QUOTA", 0)
	if err != nil {
		return ClientConfig{}, err
	}
	if quota < 0 {
		return ClientConfig{}, fmt.Errorf("invalid MATHGPT_STORE_QUOTA value: %d", quota)
	}

	return ClientConfig{
		Endpoint:    getEnvOrDefault("MATHGPT_ENDPOINT", "http://localhost:8080/api/chat"),
		Timeout:     timeout,
		Store:       strings.ToLower(getEnvOrDefault("MATHGPT_STORE", "bolt")),
		StorePath:   getEnvOrDefault("MATHGPT_STORE_PATH", ".mathgpt/state.db"),
		StoreQuota:  int64(quota),
		DisplayName: strings.TrimSpace(os.Getenv("MATHGPT_USER")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	val, err := parseOptionalFloatEnv(key)
	if err != nil || val == nil {
		return defaultValue, err
	}
	return *val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil || val == nil {
		return defaultValue, err
	}
	return *val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

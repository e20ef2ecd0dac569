package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/vectordb"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	VectorDB VectorDBConfig `mapstructure:"vectordb"`
	Document DocumentConfig `mapstructure:"document"`
	Search   SearchConfig   `mapstructure:"search"`
	Session  SessionConfig  `mapstructure:"session"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Chart    ChartConfig    `mapstructure:"chart"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"` // gin运行模式
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"` // 为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// LLMConfig 补全服务配置
type LLMConfig struct {
	Provider     string        `mapstructure:"provider" validate:"oneof=groq openai"`
	Model        string        `mapstructure:"model" validate:"required"` // 对应model_id
	APIKey       string        `mapstructure:"api_key"`
	Endpoint     string        `mapstructure:"endpoint"` // 聊天补全URL
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0"`
	MaxTokens    int           `mapstructure:"max_tokens" validate:"gte=0"`
	Temperature  float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	SummaryLimit int           `mapstructure:"summary_limit" validate:"gt=0"` // 摘要引用的字符数
}

// EmbedConfig 向量嵌入配置
type EmbedConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=ollama local openai"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	Dimensions int           `mapstructure:"dimensions" validate:"gt=0"`
	BatchSize  int           `mapstructure:"batch_size" validate:"gt=0"`
	Workers    int           `mapstructure:"workers" validate:"gt=0"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// VectorDBConfig 向量索引配置
type VectorDBConfig struct {
	Type     string `mapstructure:"type" validate:"oneof=memory faiss"`
	Distance string `mapstructure:"distance" validate:"oneof=cosine dot l2"`
}

// DocumentConfig 文档处理配置
type DocumentConfig struct {
	ChunkSize    int      `mapstructure:"chunk_size" validate:"gt=0"`
	ChunkOverlap int      `mapstructure:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	MaxUploadMB  int      `mapstructure:"max_upload_mb" validate:"gt=0"`
	Denylist     []string `mapstructure:"denylist"` // 为空时使用内置的样板关键词
}

// SearchConfig 检索配置
type SearchConfig struct {
	RetrievalK int `mapstructure:"retrieval_k" validate:"gt=0"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"` // 无活动多久后过期
}

// CacheConfig 回答缓存配置
type CacheConfig struct {
	Enable   bool          `mapstructure:"enable"`
	Type     string        `mapstructure:"type" validate:"oneof=memory redis"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StorageConfig 工作簿归档配置
type StorageConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Type      string `mapstructure:"type" validate:"oneof=local minio"`
	Path      string `mapstructure:"path"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// DatabaseConfig 历史数据库配置
type DatabaseConfig struct {
	Enable bool   `mapstructure:"enable"`
	Type   string `mapstructure:"type" validate:"oneof=sqlite"`
	DSN    string `mapstructure:"dsn"`
}

// ChartConfig 图表执行配置
type ChartConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interpreter string        `mapstructure:"interpreter"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxOutputKB int           `mapstructure:"max_output_kb"`
	TempDir     string        `mapstructure:"temp_dir"`
}

// Load 从文件和环境变量加载配置
// 文件不存在时使用默认值，环境变量优先于文件
func Load(configPath string) (*Config, error) {
	// .env只补充尚未设置的环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		configPath = "config.yaml"
	}
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logrus.Warnf("Config file not found at %s, using defaults", configPath)
	} else {
		logrus.Infof("Using config file: %s", v.ConfigFileUsed())
	}

	// 支持环境变量覆盖，例如 LLM_API_KEY、DOCUMENT_CHUNK_SIZE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	processEnvironmentVariables(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			fields := make([]string, len(invalid))
			for i, fe := range invalid {
				fields[i] = fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Embed.Provider == "openai" && c.Embed.APIKey == "" {
		return errors.New("invalid config: embed.api_key is required for the openai embedding provider")
	}
	if !vectordb.Registered(c.VectorDB.Type) {
		return fmt.Errorf("invalid config: vectordb.type %q is not available in this build (faiss needs -tags faiss)", c.VectorDB.Type)
	}
	return nil
}

// processEnvironmentVariables 展开 ${VAR} 形式的密钥
func processEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.LLM.APIKey,
		&cfg.Embed.APIKey,
		&cfg.Cache.Password,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
	} {
		*field = expandEnv(*field)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GROQ_API_KEY")
	}
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		return os.Getenv(value[2 : len(value)-1])
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	// 补全服务默认配置
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.endpoint", "https://api.groq.com/openai/v1/chat/completions")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.summary_limit", 2000)

	// 嵌入默认配置
	// ollama的all-minilm为384维预训练模型，local为离线哈希嵌入
	v.SetDefault("embed.provider", "ollama")
	v.SetDefault("embed.model", "")
	v.SetDefault("embed.api_key", "")
	v.SetDefault("embed.endpoint", "")
	v.SetDefault("embed.dimensions", 384)
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.workers", 4)
	v.SetDefault("embed.timeout", "30s")

	// 向量索引默认配置
	v.SetDefault("vectordb.type", "memory")
	v.SetDefault("vectordb.distance", "cosine")

	// 文档处理默认配置
	v.SetDefault("document.chunk_size", 500)
	v.SetDefault("document.chunk_overlap", 50)
	v.SetDefault("document.max_upload_mb", 20)
	v.SetDefault("document.denylist", []string{})

	// 检索默认配置
	v.SetDefault("search.retrieval_k", 4)

	// 会话默认配置
	v.SetDefault("session.ttl", "2h")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", "insight")
	v.SetDefault("cache.ttl", "1h")

	// 存储默认配置
	v.SetDefault("storage.enable", true)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/uploads")
	v.SetDefault("storage.bucket", "insight")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)

	// 数据库默认配置
	v.SetDefault("database.enable", true)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/insight.db")

	// 图表执行默认配置
	v.SetDefault("chart.enabled", false)
	v.SetDefault("chart.interpreter", "python3")
	v.SetDefault("chart.timeout", "30s")
	v.SetDefault("chart.max_output_kb", 64)
	v.SetDefault("chart.temp_dir", "")
}

// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// DefaultDistanceThreshold 是检索相关性阈值的默认值（平方 L2 距离）。
const DefaultDistanceThreshold = 1.0

// MockEnvAliases 是开启开发 mock 模式的环境变量别名，任一取值为 1/true/yes 即生效。
var MockEnvAliases = []string{"DEV_MOCK_GEMINI", "GEMINI_MOCK_TEST", "GEMINI_MOCK", "MOCK_GEMINI"}

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Index     IndexConfig     `mapstructure:"index"`
	Indexer   IndexerConfig   `mapstructure:"indexer"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tika      TikaConfig      `mapstructure:"tika"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// IndexConfig 描述向量索引与元数据文件的位置。
type IndexConfig struct {
	IndexPath    string `mapstructure:"index_path"`
	MetadataPath string `mapstructure:"metadata_path"`
	// Watch 为 true 时监听索引目录，文件被替换后热加载。
	Watch bool `mapstructure:"watch"`
	// FetchOnStart 为 true 时启动前先从 MinIO 拉取索引文件。
	FetchOnStart bool `mapstructure:"fetch_on_start"`
}

// IndexerConfig 存储离线索引任务的配置。
type IndexerConfig struct {
	Sources []string `mapstructure:"sources"`
	Workers int      `mapstructure:"workers"`
}

// RetrievalConfig 存储检索与相关性判定的配置。
type RetrievalConfig struct {
	TopK              int     `mapstructure:"top_k"`
	DistanceThreshold float64 `mapstructure:"distance_threshold"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Dimensions        int           `mapstructure:"dimensions"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// LLMConfig 存储生成服务（Vertex AI）相关的配置。
type LLMConfig struct {
	Project         string              `mapstructure:"project"`
	Location        string              `mapstructure:"location"`
	Model           string              `mapstructure:"model"`
	Endpoint        string              `mapstructure:"endpoint"`
	CredentialsFile string              `mapstructure:"credentials_file"`
	MockMode        bool                `mapstructure:"mock_mode"`
	Timeout         time.Duration       `mapstructure:"timeout"`
	Generation      LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// TikaConfig 存储 Tika 服务器相关的配置。为空时索引任务不处理 PDF。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Prefix          string `mapstructure:"prefix"`
}

// DatabaseConfig 存储可选的 Redis（对话历史）与 MySQL（查询审计）配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储索引任务队列的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// Init 加载配置到全局 Conf，失败时 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Load 读取 YAML 配置文件（不存在时仅使用默认值），再叠加环境变量。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 原部署使用的环境变量名
	envBindings := map[string][]string{
		"llm.project":          {"GCP_PROJECT"},
		"llm.location":         {"GCP_LOCATION"},
		"llm.model":            {"GEMINI_MODEL"},
		"llm.credentials_file": {"GOOGLE_APPLICATION_CREDENTIALS"},
		"embedding.api_key":    {"EMBEDDING_API_KEY", "OPENAI_API_KEY"},
	}
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败 %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}

	cfg.Retrieval.DistanceThreshold = resolveThreshold(cfg.Retrieval.DistanceThreshold, os.Getenv("FAISS_DISTANCE_THRESHOLD"))
	if !cfg.LLM.MockMode {
		cfg.LLM.MockMode = mockFromEnv()
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("index.index_path", "embeddings/legal_index.bin")
	v.SetDefault("index.metadata_path", "meta.json")
	v.SetDefault("indexer.workers", 1)
	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.distance_threshold", DefaultDistanceThreshold)
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("llm.location", "us-central1")
	v.SetDefault("llm.model", "text-bison-001")
	v.SetDefault("llm.generation.max_tokens", 512)
	v.SetDefault("llm.generation.temperature", 0.0)
	v.SetDefault("minio.prefix", "legal-index")
	v.SetDefault("kafka.topic", "legal-index-tasks")
	v.SetDefault("kafka.group_id", "legal-rag-indexer")
}

// resolveThreshold 用环境变量覆盖阈值；无法解析、为负或非有限值时回退到默认值。
func resolveThreshold(fromFile float64, env string) float64 {
	threshold := fromFile
	if env = strings.TrimSpace(env); env != "" {
		parsed, err := strconv.ParseFloat(env, 64)
		if err != nil {
			return DefaultDistanceThreshold
		}
		threshold = parsed
	}
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return DefaultDistanceThreshold
	}
	return threshold
}

func mockFromEnv() bool {
	for _, name := range MockEnvAliases {
		if IsTruthy(os.Getenv(name)) {
			return true
		}
	}
	return false
}

// IsTruthy 判断取值是否为 1/true/yes（不区分大小写）。
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

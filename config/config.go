package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Github   GithubConfig   `mapstructure:"github"`
	LLM      LLMConfig      `mapstructure:"llm"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type GithubConfig struct {
	Token   string `mapstructure:"token"`    // 访问私有仓库 / 提升限流额度，可为空
	BaseURL string `mapstructure:"base_url"` // 默认 https://api.github.com，GHE 可覆盖
}

type LLMConfig struct {
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type QueueConfig struct {
	AnalysisQueue string `mapstructure:"analysis_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type AnalysisConfig struct {
	MaxFileSize       int64  `mapstructure:"max_file_size"`       // 单文件大小上限（字节），默认 100KB
	MaxFiles          int    `mapstructure:"max_files"`           // 索引文件数上限，默认 200
	JobTimeoutMinutes int    `mapstructure:"job_timeout_minutes"` // 单任务执行超时，默认 10 分钟
	ArchiveDir        string `mapstructure:"archive_dir"`         // OSS 未配置时全量索引的本地落盘目录
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Github.BaseURL == "" {
		cfg.Github.BaseURL = "https://api.github.com"
	}
	if cfg.Queue.AnalysisQueue == "" {
		cfg.Queue.AnalysisQueue = "analysis_jobs"
	}
	if cfg.Queue.MaxWorkers <= 0 {
		cfg.Queue.MaxWorkers = 2
	}
	if cfg.Analysis.MaxFileSize <= 0 {
		cfg.Analysis.MaxFileSize = 100 * 1024
	}
	if cfg.Analysis.MaxFiles <= 0 {
		cfg.Analysis.MaxFiles = 200
	}
	if cfg.Analysis.JobTimeoutMinutes <= 0 {
		cfg.Analysis.JobTimeoutMinutes = 10
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
}

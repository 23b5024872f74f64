package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Minio    MinioConfig    `yaml:"minio"`
	GenAI    GenAIConfig    `yaml:"genai"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Auth     AuthConfig     `yaml:"auth"`
	Users    []User         `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	MaxAnalyses int `yaml:"max_analyses"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type GenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	EmbedModel     string `yaml:"embed_model"`
	JudgeModel     string `yaml:"judge_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

type AnalysisConfig struct {
	HighThreshold     float64 `yaml:"high_threshold"`
	LowThreshold      float64 `yaml:"low_threshold"`
	PresenceThreshold float64 `yaml:"presence_threshold"`
	TopK              int     `yaml:"top_k"`
	MinClauseTokens   int     `yaml:"min_clause_tokens"`
	MaxClauseWorkers  int     `yaml:"max_clause_workers"`
}

type CorpusConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Tenant   string `yaml:"tenant"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Store.MaxAnalyses == 0 {
		cfg.Store.MaxAnalyses = 100
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.GenAI.EmbedModel == "" {
		cfg.GenAI.EmbedModel = "gemini-embedding-001"
	}
	if cfg.GenAI.JudgeModel == "" {
		cfg.GenAI.JudgeModel = "gemini-2.5-flash"
	}
	if cfg.GenAI.TimeoutSeconds == 0 {
		cfg.GenAI.TimeoutSeconds = 30
	}
	if cfg.GenAI.MaxRetries == 0 {
		cfg.GenAI.MaxRetries = 2
	}
	if cfg.Analysis.HighThreshold == 0 {
		cfg.Analysis.HighThreshold = 0.80
	}
	if cfg.Analysis.LowThreshold == 0 {
		cfg.Analysis.LowThreshold = 0.55
	}
	if cfg.Analysis.PresenceThreshold == 0 {
		cfg.Analysis.PresenceThreshold = cfg.Analysis.LowThreshold
	}
	if cfg.Analysis.TopK == 0 {
		cfg.Analysis.TopK = 3
	}
	if cfg.Analysis.MinClauseTokens == 0 {
		cfg.Analysis.MinClauseTokens = 3
	}
	if cfg.Analysis.MaxClauseWorkers == 0 {
		cfg.Analysis.MaxClauseWorkers = 4
	}
	if cfg.Corpus.Path == "" {
		cfg.Corpus.Path = "corpus.yaml"
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}

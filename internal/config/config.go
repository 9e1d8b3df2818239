package config

import (
	"log"

	"gopkg.in/yaml.v3"

	"learnhub/pkg/config"
)

type Config struct {
	Server        config.ServerConfig `yaml:"server"`
	DB            config.DBConfig     `yaml:"db"`
	MQ            config.MQConfig     `yaml:"mq"`
	Redis         config.RedisConfig  `yaml:"redis"`
	JWT           config.JWTConfig    `yaml:"jwt"`
	Notifications struct {
		RetryMax        int64 `yaml:"retry_max"`
		DedupTTLSeconds int   `yaml:"dedup_ttl_seconds"`
	} `yaml:"notifications"`
}

func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)

	if cfg.Notifications.RetryMax <= 0 {
		cfg.Notifications.RetryMax = 5
	}
	if cfg.Notifications.DedupTTLSeconds <= 0 {
		cfg.Notifications.DedupTTLSeconds = 86400
	}

	return &cfg
}

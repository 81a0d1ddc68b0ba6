package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Redis     RedisConfig
	Chain     ChainConfig
	Oracle    OracleConfig
	Notify    NotifyConfig
	Scheduler SchedulerConfig
	Server    ServerConfig
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type ChainConfig struct {
	RPCURL            string `mapstructure:"rpc_url"`
	FundingPrivateKey string `mapstructure:"funding_private_key"`
	ChainID           int64  `mapstructure:"chain_id"`
}

type OracleConfig struct {
	URL string `mapstructure:"url"`
}

type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type SchedulerConfig struct {
	IntervalSec int64 `mapstructure:"interval_sec"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("scheduler.interval_sec", 60)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"redis.addr":                "REDIS_ADDR",
		"redis.password":            "REDIS_PASSWORD",
		"chain.rpc_url":             "RPC_URL",
		"chain.funding_private_key": "FUNDING_PRIVATE_KEY",
		"chain.chain_id":            "CHAIN_ID",
		"oracle.url":                "PRICE_ORACLE_URL",
		"notify.webhook_url":        "NOTIFY_WEBHOOK_URL",
		"scheduler.interval_sec":    "SETTLE_INTERVAL_SEC",
		"server.port":               "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Chain.RPCURL, "RPC_URL"},
		{c.Chain.FundingPrivateKey, "FUNDING_PRIVATE_KEY"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("required config missing: CHAIN_ID")
	}
	if c.Scheduler.IntervalSec <= 0 {
		return fmt.Errorf("SETTLE_INTERVAL_SEC must be positive")
	}
	return nil
}

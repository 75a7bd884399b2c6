package configs

import (
	"os"
	"strconv"
	"strings"

	"perpguard/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Agent    AgentConfig
	Exchange ExchangeConfig
	Trading  TradingConfig
	Breaker  BreakerConfig
	Telegram TelegramConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    string // operator API (echo)
	OpsPort string // ops listener (chi)
	Env     string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// AgentConfig holds reasoning agent configuration
type AgentConfig struct {
	URL              string
	ExecutionEnabled bool // false runs the bot observe-only
}

// ExchangeConfig holds exchange client configuration
type ExchangeConfig struct {
	BaseURL string
	Address string // account address for userState queries
}

// TradingConfig holds cycle and risk configuration
type TradingConfig struct {
	Symbols              []string
	DefaultProfile       string
	MaxOpenPositions     int
	EnforceRiskReward    bool
	MonitorIntervalSec   int     // stop-loss / trailing scan cadence
	BreakerIntervalSec   int     // circuit-breaker evaluation cadence
	BalanceSyncMinutes   int     // balance reconciliation cadence
	DefaultCycleMinutes  int     // fallback when scheduling input is missing
	CycleTimeoutMinutes  int     // bounded per-cycle deadline
	MinBalanceChange     float64 // reconciler noise floor
	DepositThreshold     float64 // reconciler deposit/withdrawal threshold
}

// BreakerConfig holds circuit breaker limits
type BreakerConfig struct {
	MaxDailyLossPct      float64
	MaxConsecutiveLosses int
}

// TelegramConfig holds notification configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			OpsPort: getEnv("OPS_PORT", "8081"),
			Env:     getEnv("GO_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Agent: AgentConfig{
			URL:              getEnv("AGENT_ENGINE_URL", "http://localhost:8000"),
			ExecutionEnabled: getEnvBool("EXECUTION_ENABLED", true),
		},
		Exchange: ExchangeConfig{
			BaseURL: getEnv("EXCHANGE_BASE_URL", "https://api.hyperliquid.xyz"),
			Address: getEnv("EXCHANGE_ADDRESS", ""),
		},
		Trading: TradingConfig{
			Symbols:             getEnvList("TRADING_SYMBOLS", "BTC,ETH,SOL"),
			DefaultProfile:      getEnv("RISK_PROFILE", domain.ProfileModerate),
			MaxOpenPositions:    getEnvInt("MAX_OPEN_POSITIONS", 3),
			EnforceRiskReward:   getEnvBool("ENFORCE_RISK_REWARD", true),
			MonitorIntervalSec:  getEnvInt("MONITOR_INTERVAL_SEC", 10),
			BreakerIntervalSec:  getEnvInt("BREAKER_INTERVAL_SEC", 30),
			BalanceSyncMinutes:  getEnvInt("BALANCE_SYNC_MINUTES", 5),
			DefaultCycleMinutes: getEnvInt("DEFAULT_CYCLE_MINUTES", 12),
			CycleTimeoutMinutes: getEnvInt("CYCLE_TIMEOUT_MINUTES", 10),
			MinBalanceChange:    getEnvFloat("MIN_BALANCE_CHANGE", 0.01),
			DepositThreshold:    getEnvFloat("DEPOSIT_THRESHOLD", 1.0),
		},
		Breaker: BreakerConfig{
			MaxDailyLossPct:      getEnvFloat("MAX_DAILY_LOSS_PCT", 0.05),
			MaxConsecutiveLosses: getEnvInt("MAX_CONSECUTIVE_LOSSES", 3),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
	}
}

// ProfileParams returns the parameter bundle for a risk profile name.
// Unknown names fall back to MODERATE.
func ProfileParams(name string) domain.RiskParams {
	switch name {
	case domain.ProfileCautious:
		return domain.RiskParams{
			Name:             domain.ProfileCautious,
			RSIOverbought:    65,
			RSIOversold:      35,
			MaxLeverage:      5,
			MaxPositionSize:  0.02,
			MaxRiskPerTrade:  0.005,
			MinConfidence:    0.8,
			MinRiskReward:    2.0,
			TrailingEnabled:  true,
			TrailingActivate: 3.0,
			TrailingDistance: 0.01,
		}
	case domain.ProfileFearless:
		return domain.RiskParams{
			Name:             domain.ProfileFearless,
			RSIOverbought:    80,
			RSIOversold:      20,
			MaxLeverage:      20,
			MaxPositionSize:  0.1,
			MaxRiskPerTrade:  0.02,
			MinConfidence:    0.6,
			MinRiskReward:    1.2,
			TrailingEnabled:  false,
			TrailingActivate: 0,
			TrailingDistance: 0,
		}
	default:
		return domain.RiskParams{
			Name:             domain.ProfileModerate,
			RSIOverbought:    70,
			RSIOversold:      30,
			MaxLeverage:      10,
			MaxPositionSize:  0.05,
			MaxRiskPerTrade:  0.01,
			MinConfidence:    0.7,
			MinRiskReward:    1.5,
			TrailingEnabled:  true,
			TrailingActivate: 5.0,
			TrailingDistance: 0.02,
		}
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable as a slice
func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

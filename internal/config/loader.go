package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OMC_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has not been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides lets operators inject secrets and addresses at deploy
// time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "OMC_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "OMC_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "OMC_WALLET_KEY_PASSWORD")

	// ── Network ──
	setStr(&cfg.Network.Active, "OMC_NETWORK")
	applyChainOverrides(&cfg.Network.Testnet, "OMC_TESTNET_")
	applyChainOverrides(&cfg.Network.Mainnet, "OMC_MAINNET_")

	// ── Fees ──
	setInt64(&cfg.Fees.PlatformBps, "OMC_FEES_PLATFORM_BPS")
	setInt64(&cfg.Fees.CreatorBps, "OMC_FEES_CREATOR_BPS")
	setStr(&cfg.Fees.PoolCreationFee, "OMC_FEES_POOL_CREATION_FEE")
	setStr(&cfg.Fees.ContributionFee, "OMC_FEES_CONTRIBUTION_FEE")
	setStr(&cfg.Fees.MinPoolPrice, "OMC_FEES_MIN_POOL_PRICE")
	setInt64(&cfg.Fees.EarlyPenaltyBps, "OMC_FEES_EARLY_PENALTY_BPS")

	// ── Approval ──
	setStr(&cfg.Approval.Mode, "OMC_APPROVAL_MODE")
	setStr(&cfg.Approval.Ceiling, "OMC_APPROVAL_CEILING")

	// ── Flow ──
	setDuration(&cfg.Flow.SubmitTimeout, "OMC_FLOW_SUBMIT_TIMEOUT")
	setDuration(&cfg.Flow.LockTTL, "OMC_FLOW_LOCK_TTL")
	setDuration(&cfg.Flow.Retain, "OMC_FLOW_RETAIN")
	setInt(&cfg.Flow.RateLimit, "OMC_FLOW_RATE_LIMIT")
	setDuration(&cfg.Flow.RateWindow, "OMC_FLOW_RATE_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "OMC_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "OMC_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OMC_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OMC_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OMC_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OMC_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OMC_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OMC_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OMC_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OMC_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OMC_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OMC_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OMC_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OMC_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OMC_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OMC_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.OpinionTTL, "OMC_REDIS_OPINION_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "OMC_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "OMC_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OMC_S3_REGION")
	setStr(&cfg.S3.Bucket, "OMC_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OMC_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OMC_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OMC_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OMC_S3_FORCE_PATH_STYLE")

	// ── Monitor ──
	setDuration(&cfg.Monitor.Interval, "OMC_MONITOR_INTERVAL")
	setDuration(&cfg.Monitor.Timeout, "OMC_MONITOR_TIMEOUT")
	setDuration(&cfg.Monitor.MaxHeadAge, "OMC_MONITOR_MAX_HEAD_AGE")
	setDuration(&cfg.Monitor.ArchiveInterval, "OMC_MONITOR_ARCHIVE_INTERVAL")
	setDuration(&cfg.Monitor.ArchiveAfter, "OMC_MONITOR_ARCHIVE_AFTER")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "OMC_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "OMC_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OMC_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OMC_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OMC_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OMC_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OMC_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OMC_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "OMC_MODE")
	setStr(&cfg.LogLevel, "OMC_LOG_LEVEL")
}

func applyChainOverrides(b *ChainBlock, prefix string) {
	setInt64(&b.ChainID, prefix+"CHAIN_ID")
	setStr(&b.RPCURL, prefix+"RPC_URL")
	setStringSlice(&b.FallbackRPC, prefix+"FALLBACK_RPC")
	setStr(&b.USDC, prefix+"USDC")
	setStr(&b.OpinionCore, prefix+"OPINION_CORE")
	setStr(&b.PoolManager, prefix+"POOL_MANAGER")
	setStr(&b.FeeManager, prefix+"FEE_MANAGER")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

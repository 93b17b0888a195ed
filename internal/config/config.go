// Package config defines the top-level configuration for omc and provides
// validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/chain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/txflow"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OMC_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Network  NetworkConfig  `toml:"network"`
	Fees     FeesConfig     `toml:"fees"`
	Approval ApprovalConfig `toml:"approval"`
	Flow     FlowConfig     `toml:"flow"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the signing key. Without one the API is read-only and
// every flow fails as "wallet not connected".
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// NetworkConfig selects one of the two deployments.
type NetworkConfig struct {
	Active  string     `toml:"active"`
	Testnet ChainBlock `toml:"testnet"`
	Mainnet ChainBlock `toml:"mainnet"`
}

// ChainBlock is one deployment's RPC and contract addresses.
type ChainBlock struct {
	Name        string   `toml:"name"`
	ChainID     int64    `toml:"chain_id"`
	RPCURL      string   `toml:"rpc_url"`
	FallbackRPC []string `toml:"fallback_rpc"`
	USDC        string   `toml:"usdc"`
	OpinionCore string   `toml:"opinion_core"`
	PoolManager string   `toml:"pool_manager"`
	FeeManager  string   `toml:"fee_manager"`
}

// FeesConfig mirrors the platform fee table. Amounts are decimal USDC.
type FeesConfig struct {
	PlatformBps     int64  `toml:"platform_bps"`
	CreatorBps      int64  `toml:"creator_bps"`
	PoolCreationFee string `toml:"pool_creation_fee"`
	ContributionFee string `toml:"contribution_fee"`
	MinPoolPrice    string `toml:"min_pool_price"`
	EarlyPenaltyBps int64  `toml:"early_penalty_bps"`
}

// ApprovalConfig selects how much allowance approvals grant.
type ApprovalConfig struct {
	Mode    string `toml:"mode"`
	Ceiling string `toml:"ceiling"`
}

// FlowConfig holds the flow runner limits.
type FlowConfig struct {
	SubmitTimeout duration `toml:"submit_timeout"`
	LockTTL       duration `toml:"lock_ttl"`
	Retain        duration `toml:"retain"`
	RateLimit     int      `toml:"rate_limit"`
	RateWindow    duration `toml:"rate_window"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	OpinionTTL duration `toml:"opinion_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// MonitorConfig holds the RPC health check and flow archive schedule.
type MonitorConfig struct {
	Interval        duration `toml:"interval"`
	Timeout         duration `toml:"timeout"`
	MaxHeadAge      duration `toml:"max_head_age"`
	ArchiveInterval duration `toml:"archive_interval"`
	ArchiveAfter    duration `toml:"archive_after"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a configuration that runs against Base Sepolia once the
// contract addresses are filled in.
func Defaults() Config {
	return Config{
		Network: NetworkConfig{
			Active: "testnet",
			Testnet: ChainBlock{
				Name:    "base-sepolia",
				ChainID: 84532,
				RPCURL:  "https://sepolia.base.org",
				USDC:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			},
			Mainnet: ChainBlock{
				Name:    "base",
				ChainID: 8453,
				RPCURL:  "https://mainnet.base.org",
				USDC:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			},
		},
		Fees: FeesConfig{
			PlatformBps:     700,
			CreatorBps:      300,
			PoolCreationFee: "5",
			ContributionFee: "0",
			MinPoolPrice:    "100",
			EarlyPenaltyBps: 2000,
		},
		Approval: ApprovalConfig{
			Mode:    string(txflow.ApprovalExact),
			Ceiling: "1000000",
		},
		Flow: FlowConfig{
			SubmitTimeout: duration{10 * time.Minute},
			LockTTL:       duration{10 * time.Minute},
			Retain:        duration{time.Hour},
			RateLimit:     10,
			RateWindow:    duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "omc",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			OpinionTTL: duration{15 * time.Second},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "omc-data",
			ForcePathStyle: true,
		},
		Monitor: MonitorConfig{
			Interval:        duration{time.Minute},
			Timeout:         duration{10 * time.Second},
			MaxHeadAge:      duration{2 * time.Minute},
			ArchiveInterval: duration{24 * time.Hour},
			ArchiveAfter:    duration{30 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"rpc_unhealthy", "rpc_recovered", "flow_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"monitor": true,
	"full":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	block, err := c.activeBlock()
	if err != nil {
		errs = append(errs, err.Error())
	} else {
		prefix := "network." + c.Network.Active + ": "
		if block.ChainID <= 0 {
			errs = append(errs, prefix+"chain_id must be positive")
		}
		if block.RPCURL == "" {
			errs = append(errs, prefix+"rpc_url must not be empty")
		}
		for name, addr := range map[string]string{
			"usdc":         block.USDC,
			"opinion_core": block.OpinionCore,
			"pool_manager": block.PoolManager,
		} {
			if !common.IsHexAddress(addr) {
				errs = append(errs, fmt.Sprintf("%s%s must be a hex address, got %q", prefix, name, addr))
			}
		}
		if block.FeeManager != "" && !common.IsHexAddress(block.FeeManager) {
			errs = append(errs, prefix+"fee_manager must be a hex address")
		}
	}

	for name, v := range map[string]string{
		"fees.pool_creation_fee": c.Fees.PoolCreationFee,
		"fees.contribution_fee":  c.Fees.ContributionFee,
		"fees.min_pool_price":    c.Fees.MinPoolPrice,
		"approval.ceiling":       c.Approval.Ceiling,
	} {
		if _, err := usdc.Parse(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if c.Fees.PlatformBps < 700 || c.Fees.PlatformBps > 1000 {
		errs = append(errs, fmt.Sprintf("fees: platform_bps must be within 700-1000, got %d", c.Fees.PlatformBps))
	}
	if c.Fees.CreatorBps < 0 || c.Fees.PlatformBps+c.Fees.CreatorBps > 10_000 {
		errs = append(errs, "fees: platform_bps + creator_bps must be within 0-10000")
	}
	if c.Fees.EarlyPenaltyBps < 0 || c.Fees.EarlyPenaltyBps > 10_000 {
		errs = append(errs, "fees: early_penalty_bps must be within 0-10000")
	}
	switch txflow.ApprovalMode(c.Approval.Mode) {
	case txflow.ApprovalExact, txflow.ApprovalUnlimited:
	default:
		errs = append(errs, fmt.Sprintf("approval: unknown mode %q (valid: exact, unlimited)", c.Approval.Mode))
	}

	if c.Flow.SubmitTimeout.Duration <= 0 {
		errs = append(errs, "flow: submit_timeout must be positive")
	}
	if c.Flow.RateLimit < 0 {
		errs = append(errs, "flow: rate_limit must be >= 0")
	}
	if c.Flow.RateLimit > 0 && c.Flow.RateWindow.Duration <= 0 {
		errs = append(errs, "flow: rate_window must be positive when rate_limit is set")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when enabled")
	}

	if c.Monitor.Interval.Duration <= 0 {
		errs = append(errs, "monitor: interval must be positive")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) activeBlock() (ChainBlock, error) {
	switch strings.ToLower(c.Network.Active) {
	case "testnet":
		return c.Network.Testnet, nil
	case "mainnet":
		return c.Network.Mainnet, nil
	}
	return ChainBlock{}, fmt.Errorf("network: unknown active network %q (valid: testnet, mainnet)", c.Network.Active)
}

// ResolveNetwork returns the active deployment as a chain.Network. Call after
// Validate.
func (c *Config) ResolveNetwork() (chain.Network, error) {
	b, err := c.activeBlock()
	if err != nil {
		return chain.Network{}, err
	}
	n := chain.Network{
		Name:        b.Name,
		ChainID:     b.ChainID,
		RPCURL:      b.RPCURL,
		USDC:        common.HexToAddress(b.USDC),
		OpinionCore: common.HexToAddress(b.OpinionCore),
		PoolManager: common.HexToAddress(b.PoolManager),
	}
	if b.FeeManager != "" {
		n.FeeManager = common.HexToAddress(b.FeeManager)
	}
	return n, nil
}

// RPCEndpoints lists the primary and fallback RPC URLs of the active
// deployment, primary first.
func (c *Config) RPCEndpoints() []string {
	b, err := c.activeBlock()
	if err != nil {
		return nil
	}
	out := make([]string, 0, 1+len(b.FallbackRPC))
	if b.RPCURL != "" {
		out = append(out, b.RPCURL)
	}
	for _, u := range b.FallbackRPC {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Amount parses a decimal USDC config value. Call after Validate.
func Amount(v string) usdc.Amount {
	a, err := usdc.Parse(v)
	if err != nil {
		return 0
	}
	return a
}

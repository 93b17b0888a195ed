package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

const (
	testCore = "0x1111111111111111111111111111111111111111"
	testPool = "0x2222222222222222222222222222222222222222"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Network.Testnet.OpinionCore = testCore
	cfg.Network.Testnet.PoolManager = testPool
	return cfg
}

func TestDefaults_RequireContractAddresses(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected defaults without contract addresses to fail validation")
	}
	for _, want := range []string{"opinion_core", "pool_manager"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got %v", want, err)
		}
	}

	valid := validConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.Network.Active = "devnet"
	cfg.Fees.PoolCreationFee = "5.0000001"
	cfg.Approval.Mode = "infinite"
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"mode", "devnet", "pool_creation_fee", "approval", "telegram"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got %v", want, err)
		}
	}
}

func TestResolveNetwork(t *testing.T) {
	cfg := validConfig()
	n, err := cfg.ResolveNetwork()
	if err != nil {
		t.Fatal(err)
	}
	if n.ChainID != 84532 || n.Name != "base-sepolia" {
		t.Errorf("Expected base-sepolia/84532, got %s/%d", n.Name, n.ChainID)
	}
	if n.OpinionCore != common.HexToAddress(testCore) {
		t.Errorf("Unexpected opinion core %s", n.OpinionCore.Hex())
	}
	if n.FeeManager != (common.Address{}) {
		t.Errorf("Expected zero fee manager, got %s", n.FeeManager.Hex())
	}

	cfg.Network.Active = "mainnet"
	n, err = cfg.ResolveNetwork()
	if err != nil {
		t.Fatal(err)
	}
	if n.ChainID != 8453 {
		t.Errorf("Expected chain 8453, got %d", n.ChainID)
	}
}

func TestRPCEndpoints_PrimaryFirst(t *testing.T) {
	cfg := validConfig()
	cfg.Network.Testnet.FallbackRPC = []string{" https://b.example ", ""}
	got := cfg.RPCEndpoints()
	if len(got) != 2 || got[0] != "https://sepolia.base.org" || got[1] != "https://b.example" {
		t.Errorf("Unexpected endpoints %v", got)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "omc.toml")
	body := `
mode = "server"

[network.testnet]
opinion_core = "` + testCore + `"
pool_manager = "` + testPool + `"

[flow]
submit_timeout = "2m"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OMC_MODE", "monitor")
	t.Setenv("OMC_FEES_POOL_CREATION_FEE", "7.5")
	t.Setenv("OMC_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "monitor" {
		t.Errorf("Expected env to override mode, got %s", cfg.Mode)
	}
	if cfg.Flow.SubmitTimeout.Duration != 2*time.Minute {
		t.Errorf("Expected submit_timeout 2m, got %s", cfg.Flow.SubmitTimeout.Duration)
	}
	if Amount(cfg.Fees.PoolCreationFee) != 7_500_000 {
		t.Errorf("Expected 7.5 USDC creation fee, got %s", cfg.Fees.PoolCreationFee)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected CORS origins %v", cfg.Server.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected loaded config to validate, got %v", err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Server.APIKey = "k"

	out := RedactedConfig(&cfg)
	if out.Wallet.PrivateKey != redacted || out.Postgres.DSN != redacted || out.Server.APIKey != redacted {
		t.Errorf("Expected secrets redacted, got %+v", out.Wallet)
	}
	if cfg.Wallet.PrivateKey != "deadbeef" {
		t.Error("Expected original config untouched")
	}
	out.Server.CORSOrigins[0] = "changed"
	if cfg.Server.CORSOrigins[0] == "changed" {
		t.Error("Expected CORS origins to be copied")
	}
}

func TestAmount(t *testing.T) {
	if got := Amount("100"); got != 100*usdc.Unit {
		t.Errorf("Expected 100 USDC, got %d", got)
	}
	if got := Amount("bad"); got != 0 {
		t.Errorf("Expected 0 for unparseable value, got %d", got)
	}
}

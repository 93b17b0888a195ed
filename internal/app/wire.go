package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	s3blob "github.com/AxelRoffi/OpinionMarketCap-sub004/internal/blob/s3"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/cache/redis"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/chain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/config"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/crypto"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/monitor"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/notify"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/pricing"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/service"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/store/postgres"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/txflow"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/wallet"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Network chain.Network
	Chain   *chain.Client

	// Stores
	FlowStore  domain.FlowStore
	AuditStore domain.AuditStore

	// Caches
	OpinionCache domain.OpinionCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus
	Sessions     *wallet.Store

	// Blob storage; nil unless s3.enabled
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   monitor.Archiver

	Notifier *notify.Notifier

	Opinions *service.OpinionService
	Pools    *service.PoolService
	Flows    *service.FlowService
	Checker  *monitor.Checker
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(step string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", step, err)
	}

	network, err := cfg.ResolveNetwork()
	if err != nil {
		return fail("network", err)
	}
	deps := &Dependencies{Network: network}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fail("postgres", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fail("postgres migrations", err)
		}
	}
	flowStore := postgres.NewFlowStore(pgClient.Pool())
	deps.FlowStore = flowStore
	deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return fail("redis", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.OpinionCache = redis.NewOpinionCache(redisClient, cfg.Redis.OpinionTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.Sessions = wallet.NewStore(redis.NewKV(redisClient), logger)

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		writer := s3blob.NewWriter(s3Client)
		deps.BlobWriter = writer
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewFlowArchiver(writer, flowStore, deps.AuditStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Chain ---
	key, err := crypto.LoadKey(crypto.KeySource{
		RawHex:   cfg.Wallet.PrivateKey,
		FilePath: cfg.Wallet.EncryptedKeyPath,
		Password: cfg.Wallet.KeyPassword,
	})
	switch {
	case errors.Is(err, crypto.ErrNoKey):
		logger.WarnContext(ctx, "wire: no wallet key configured, flows will fail as wallet not connected")
	case err != nil:
		return fail("wallet key", err)
	}
	chainClient, err := chain.Dial(ctx, network, key, logger)
	if err != nil {
		return fail("chain", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	// --- Services ---
	deps.Opinions = service.NewOpinionService(chainClient, deps.OpinionCache, pricing.FeeSchedule{
		PlatformFeeBps:    cfg.Fees.PlatformBps,
		CreatorRoyaltyBps: cfg.Fees.CreatorBps,
	}, logger)
	deps.Pools = service.NewPoolService(chainClient, deps.Opinions, service.PoolConfig{
		CreationFee:     config.Amount(cfg.Fees.PoolCreationFee),
		ContributionFee: config.Amount(cfg.Fees.ContributionFee),
		MinPoolPrice:    config.Amount(cfg.Fees.MinPoolPrice),
		PenaltyBps:      cfg.Fees.EarlyPenaltyBps,
	}, logger)
	deps.Flows = service.NewFlowService(service.FlowDeps{
		Chain:    chainClient,
		Opinions: deps.Opinions,
		Pools:    deps.Pools,
		Store:    deps.FlowStore,
		Audit:    deps.AuditStore,
		Bus:      deps.SignalBus,
		Locks:    deps.LockManager,
		Notifier: deps.Notifier,
	}, service.FlowConfig{
		OpinionCore:     network.OpinionCore,
		PoolManager:     network.PoolManager,
		ApprovalMode:    txflow.ApprovalMode(cfg.Approval.Mode),
		ApprovalCeiling: config.Amount(cfg.Approval.Ceiling),
		SubmitTimeout:   cfg.Flow.SubmitTimeout.Duration,
		LockTTL:         cfg.Flow.LockTTL.Duration,
		Retain:          cfg.Flow.Retain.Duration,
	}, logger)
	closers = append(closers, deps.Flows.Close)

	deps.Checker = monitor.NewChecker(monitor.Config{
		Network:    network.Name,
		ChainID:    network.ChainID,
		Endpoints:  endpoints(cfg.RPCEndpoints()),
		Contracts:  network.Contracts(),
		MaxHeadAge: cfg.Monitor.MaxHeadAge.Duration,
		Timeout:    cfg.Monitor.Timeout.Duration,
	}, nil, deps.BlobWriter, deps.AuditStore, deps.Notifier, logger)

	return deps, cleanup, nil
}

func endpoints(urls []string) []monitor.Endpoint {
	out := make([]monitor.Endpoint, 0, len(urls))
	for i, u := range urls {
		name := "primary"
		if i > 0 {
			name = fmt.Sprintf("fallback-%d", i)
		}
		out = append(out, monitor.Endpoint{Name: name, URL: u})
	}
	return out
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zjesko/hyperarb/internal/cache/redis"
	"github.com/zjesko/hyperarb/internal/chain"
	"github.com/zjesko/hyperarb/internal/config"
	"github.com/zjesko/hyperarb/internal/notify"
)

// Dependencies bundles the external collaborators the tasks need: the remote
// chain view, the optional opportunity signal bus, and the optional alerting
// channels. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	Chain     *chain.Client
	SignalBus *redis.SignalBus
	Notifier  *notify.Notifier

	// ERC20Bytecode is the optional generic token bytecode substituted into
	// the overlay state during quote simulation.
	ERC20Bytecode []byte
}

// Wire constructs all concrete dependencies from the given configuration and
// returns them together with a cleanup function that should be called on
// shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	var senders []notify.Sender
	if cfg.Notify.Telegram.BotToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	}
	if cfg.Notify.Discord.WebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.Discord.WebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	if cfg.Hyperswap.ERC20BytecodePath != "" {
		code, err := loadBytecode(cfg.Hyperswap.ERC20BytecodePath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: erc20 bytecode: %w", err)
		}
		deps.ERC20Bytecode = code
	}

	return deps, cleanup, nil
}

// loadBytecode reads a hex-encoded bytecode file, with or without the 0x
// prefix.
func loadBytecode(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hexStr := strings.TrimSpace(string(raw))
	code := common.FromHex(hexStr)
	if len(code) == 0 {
		return nil, fmt.Errorf("no bytecode decoded from %s", path)
	}
	return code, nil
}

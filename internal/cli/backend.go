package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/stockroom/internal/memory"
	"github.com/mesh-intelligence/stockroom/internal/postgres"
	"github.com/mesh-intelligence/stockroom/internal/redisdoc"
	"github.com/mesh-intelligence/stockroom/internal/sqlite"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

const redisReadyTimeout = 5 * time.Second

// openBackend returns the persistence port cfg selects. The closer is nil
// for backends that hold nothing open.
func openBackend(ctx context.Context, cfg types.Config, log *zap.Logger) (types.Persistence, types.Closer, error) {
	switch cfg.Backend {
	case types.BackendSQLite:
		b := sqlite.NewBackend()
		if err := b.Attach(cfg); err != nil {
			return nil, nil, fmt.Errorf("attach sqlite backend: %w", err)
		}
		return b, b, nil
	case types.BackendPostgres:
		b, err := postgres.Open(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case types.BackendRedis:
		b, err := redisdoc.NewBackend(redisdoc.Config{
			Addrs:     cfg.Redis.Addrs,
			Password:  cfg.Redis.Password,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("redis backend: %w", err)
		}
		if err := b.WaitForReady(ctx, redisReadyTimeout); err != nil {
			b.Close()
			return nil, nil, err
		}
		return b, b, nil
	case types.BackendMemory:
		return memory.NewBackend(), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, cfg.Backend)
	}
}

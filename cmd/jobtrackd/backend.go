package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobtrack/store"
	"github.com/xraph/jobtrack/store/memory"
	redisstore "github.com/xraph/jobtrack/store/redis"
)

// openStore builds the store named by cfg.URL. The returned cleanup closes
// any client the store does not own.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, func() error, error) {
	u, err := url.Parse(cfg.Backend.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse backend url: %w", err)
	}

	switch u.Scheme {
	case "memory":
		s := memory.New(memory.WithRetention(cfg.Engine.Retention))
		return s, func() error { return nil }, nil

	case "redis", "rediss":
		opts, err := goredis.ParseURL(cfg.Backend.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)

		var codec redisstore.Codec = redisstore.JSONCodec{}
		if cfg.Backend.Codec == "msgpack" {
			codec = redisstore.MsgpackCodec{}
		}
		s := redisstore.New(client,
			redisstore.WithLogger(logger),
			redisstore.WithTTL(cfg.Engine.Retention),
			redisstore.WithCodec(codec),
			redisstore.WithKeyPrefix(cfg.Backend.KeyPrefix),
		)
		if err := s.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
}

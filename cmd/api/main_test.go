package main

import (
	"context"
	"testing"
	"time"

	"bookdash/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		Addr:           "127.0.0.1:0",
		AllowedOrigins: "http://localhost:5173",
		RequestTimeout: time.Second,
		RateLimitRPS:   10,
		RateLimitBurst: 10,
		MaxBodyBytes:   1 << 20,
		Auth: config.Auth{
			Issuer:          "https://tenant.example/",
			Audience:        "https://api.example",
			JWKSURL:         "http://127.0.0.1:1/.well-known/jwks.json",
			RefreshInterval: time.Minute,
		},
		Store: config.Store{Driver: config.DriverMemory, Timeout: time.Second},
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(), zap.NewNop()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_BadStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store = config.Store{Driver: "mongo"}

	err := run(context.Background(), cfg, zap.NewNop())

	assert.Error(t, err)
}

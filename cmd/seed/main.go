package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"bookdash/internal/book"
	"bookdash/internal/config"
	"bookdash/internal/logging"
	"bookdash/internal/store"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	count := pflag.IntP("count", "n", 25, "Number of books to insert")
	pflag.Parse()

	logger := logging.Must("info", "console")
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadStore()
	if err != nil {
		logger.Fatal("invalid store configuration", zap.Error(err))
	}

	ctx := context.Background()
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Driver), zap.Error(err))
	}
	defer backend.Close()

	svc := book.NewService(backend.Repo)
	inserted, err := seed(ctx, svc, *count, rand.New(rand.NewSource(1)))
	if err != nil {
		logger.Error("seeding stopped", zap.Int("inserted", inserted), zap.Error(err))
		os.Exit(1)
	}

	books, err := svc.List(ctx)
	if err != nil {
		logger.Fatal("failed to count books", zap.Error(err))
	}
	logger.Info("seed complete", zap.Int("inserted", inserted), zap.Int("total", len(books)))
}

type creator interface {
	Create(ctx context.Context, in book.Input) (book.Book, error)
}

func seed(ctx context.Context, svc creator, count int, rnd *rand.Rand) (int, error) {
	for i := 0; i < count; i++ {
		in := book.Input{
			Name:        fmt.Sprintf("%s %s %d", pick(rnd, adjectives), pick(rnd, nouns), i+1),
			Description: fmt.Sprintf("A book about %s.", pick(rnd, topics)),
		}
		if _, err := svc.Create(ctx, in); err != nil {
			return i, err
		}
	}
	return count, nil
}

var (
	adjectives = []string{"Silent", "Hidden", "Broken", "Golden", "Distant", "Last", "Northern", "Forgotten"}
	nouns      = []string{"Journey", "Garden", "Empire", "Letters", "River", "Archive", "Winter", "Harbor"}
	topics     = []string{"history", "science", "technology", "nature", "philosophy", "art", "travel", "mystery"}
)

func pick(rnd *rand.Rand, words []string) string {
	return words[rnd.Intn(len(words))]
}

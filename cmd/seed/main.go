package main

import (
	"context"
	"errors"
	"io/fs"

	"storefront/internal/config"
	"storefront/internal/infra/db"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/seed"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// サンプルのカテゴリと商品をDBに入れる
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	gormDB, err := db.Connect(cfg.DSN(), false)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("migrate failed", zap.Error(err))
	}

	catalog := usecase.NewProductUsecase(
		infraRepo.NewTxManagerGorm(gormDB),
		infraRepo.NewProductGormRepository(gormDB),
		infraRepo.NewCategoryGormRepository(gormDB),
		nil,
	)
	if err := seed.Run(context.Background(), catalog, log); err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("seeding completed")
}

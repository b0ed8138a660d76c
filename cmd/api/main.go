package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/memory"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	repo "storefront/internal/repository"
	"storefront/internal/seed"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// 保存層の部品（memory / postgres で差し替え）
type storage struct {
	tx         repo.TransactionManager
	carts      repo.CartRepository
	cartItems  repo.CartItemRepository
	products   repo.ProductRepository
	categories repo.CategoryRepository
	users      repo.UserRepository
}

func openStorage(cfg config.Config, log *zap.Logger) (storage, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage (data is lost on restart)")
		s := memory.NewStore()
		return storage{
			tx:         s,
			carts:      s.Carts(),
			cartItems:  s.CartItems(),
			products:   s.Products(),
			categories: s.Categories(),
			users:      s.Users(),
		}, nil
	}

	//DB接続
	gormDB, err := db.Connect(cfg.DSN(), !cfg.IsProduction())
	if err != nil {
		return storage{}, err
	}
	if err := db.Migrate(gormDB); err != nil {
		return storage{}, err
	}

	//Repository（GORM実装）生成
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	return storage{
		tx:         infraRepo.NewTxManagerGorm(gormDB),
		carts:      cartRepo,
		cartItems:  cartRepo,
		products:   infraRepo.NewProductGormRepository(gormDB),
		categories: infraRepo.NewCategoryGormRepository(gormDB),
		users:      infraRepo.NewUserGormRepository(gormDB),
	}, nil
}

func main() {
	//.envは無くてもよい
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(cfg, log)
	if err != nil {
		log.Fatal("storage init failed", zap.Error(err))
	}

	//商品キャッシュ（REDIS_URLがあるときだけ）
	var lookup repo.ProductLookup = st.products
	var invalidator usecase.CatalogInvalidator = usecase.NoopInvalidator{}
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("redis init failed", zap.Error(err))
		}
		defer rdb.Close()

		pc := cache.NewProductCache(rdb, st.products, cfg.CatalogCacheTTL, log)
		lookup = pc
		invalidator = pc
		log.Info("catalog cache enabled", zap.Duration("ttl", cfg.CatalogCacheTTL))
	}

	pricing := usecase.FlatPricing{
		TaxRateBPS:            cfg.TaxRateBPS,
		ShippingFee:           cfg.ShippingFlatFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}

	//Usecase生成
	ledger := usecase.NewOrderLedger(st.tx, usecase.UUIDOrderNumber{}, usecase.RealClock{}, cfg.OrderNumberAttempts, invalidator, log)
	checkoutUC := usecase.NewCheckoutUsecase(st.tx, ledger, pricing, invalidator, log)
	cartUC := usecase.NewCartUsecase(st.carts, st.cartItems, lookup)
	productUC := usecase.NewProductUsecase(st.tx, st.products, st.categories, invalidator)
	userUC := usecase.NewUserUsecase(st.users, st.tx, usecase.NewBcryptPasswordHasher(12))

	//memoryはサンプルデータを入れて起動
	if cfg.Storage == config.StorageMemory {
		if err := seed.Run(ctx, productUC, log); err != nil {
			log.Fatal("seed failed", zap.Error(err))
		}
	}

	//Handler生成
	e := server.New(cfg, log,
		handler.NewHealthHandler(),
		handler.NewCartHandler(cartUC),
		handler.NewOrderHandler(checkoutUC, ledger),
		handler.NewProductHandler(productUC),
		handler.NewUserHandler(userUC),
	)

	//Server起動
	if err := server.Start(ctx, e, cfg.Addr(), log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

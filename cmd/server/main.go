package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dhuni-backend/internal/account"
	"dhuni-backend/internal/auth"
	"dhuni-backend/internal/config"
	"dhuni-backend/internal/customer"
	"dhuni-backend/internal/dashboard"
	"dhuni-backend/internal/database"
	"dhuni-backend/internal/httpx"
	"dhuni-backend/internal/inventory"
	"dhuni-backend/internal/lock"
	"dhuni-backend/internal/sales"
	"dhuni-backend/internal/storage"
	"dhuni-backend/internal/tenant"

	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	config.SetLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}

	ctx := context.Background()
	var (
		denylist auth.Denylist   = auth.NewMemoryDenylist()
		resets   auth.ResetStore = auth.NewMemoryResetStore()
		locker   lock.Locker     = lock.NewLocalLocker()
	)
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		denylist = auth.NewRedisDenylist(rdb)
		resets = auth.NewRedisResetStore(rdb)
		locker = lock.NewRedisLocker(rdb)
		logger.WithField("address", cfg.RedisAddress).Info("redis connected, using shared denylist, reset tokens and locks")
	} else {
		logger.Warn("REDIS_ADDRESS is not set, sign-outs, reset tokens and image locks are per process")
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}

	accounts := account.NewService(db)
	authSvc := auth.NewService(db, accounts, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), denylist, auth.PasswordResets{
		Store:  resets,
		Sender: auth.LogResetSender{BaseURL: cfg.PasswordResetURL},
		TTL:    cfg.PasswordResetTTL,
	})
	customers := customer.NewService(db, cfg.DefaultPhoneRegion)
	inv := inventory.NewService(db, customers, store, locker, inventory.Limits{
		MaxUploadBytes:   cfg.MaxUploadBytes,
		MaxImagesPerItem: cfg.MaxImagesPerItem,
	})
	salesSvc := sales.NewService(db, customers)
	dash := dashboard.NewService(db)

	events, unsubscribe := authSvc.Subscribe()
	defer unsubscribe()
	go func() {
		for ev := range events {
			logger.WithFields(logrus.Fields{
				"event":     ev.Kind,
				"principal": ev.PrincipalID,
				"vendor_id": ev.VendorID,
			}).Info("[auth.session]")
		}
	}()

	// Room for a full multi-image upload plus form fields.
	bodyLimit := int(cfg.MaxUploadBytes)*cfg.MaxImagesPerItem + 1<<20
	app := httpx.NewApp(bodyLimit)

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOriginList(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	if strings.EqualFold(cfg.StorageProvider, "local") {
		app.Static(cfg.StorageAccessBaseURL, cfg.LocalStoragePath)
	}

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/signup", auth.SignUpHandler(authSvc))
	api.Post("/auth/login", auth.LoginHandler(authSvc))
	api.Post("/auth/password/forgot", auth.ForgotPasswordHandler(authSvc))
	api.Post("/auth/password/reset", auth.ResetPasswordHandler(authSvc))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(authSvc))
	writers := auth.RequireRole(tenant.RoleOwner, tenant.RoleStaff)

	protected.Get("/auth/me", auth.MeHandler(authSvc))
	protected.Post("/auth/logout", auth.LogoutHandler(authSvc))
	protected.Post("/auth/password", auth.ChangePasswordHandler(authSvc))

	protected.Get("/vendor", account.GetVendorHandler(accounts))
	protected.Put("/vendor", auth.RequireRole(tenant.RoleOwner), account.UpdateVendorHandler(accounts))

	// Items
	protected.Get("/items", inventory.ListItemsHandler(inv))
	protected.Post("/items", writers, inventory.CreateItemHandler(inv))
	protected.Get("/items/export", inventory.ExportItemsHandler(inv))
	protected.Post("/items/import", writers, inventory.ImportItemsHandler(inv))
	protected.Get("/items/:id", inventory.GetItemHandler(inv))
	protected.Post("/items/:id/stock", writers, inventory.AddStockHandler(inv))
	protected.Post("/items/:id/images", writers, inventory.AttachImagesHandler(inv))
	protected.Put("/items/:id/images/:imageId/primary", writers, inventory.SetPrimaryImageHandler(inv))
	protected.Delete("/items/:id/images/:imageId", writers, inventory.DeleteImageHandler(inv))

	// Allocations
	protected.Get("/allocations", inventory.ListAllocationsHandler(inv))
	protected.Post("/allocations", writers, inventory.AllocateHandler(inv))
	protected.Post("/allocations/:id/return", writers, inventory.MarkReturnedHandler(inv))
	protected.Post("/allocations/:id/undo-return", writers, inventory.UndoReturnHandler(inv))

	// Customers
	protected.Get("/customers", customer.ListCustomersHandler(customers))
	protected.Post("/customers", writers, customer.CreateCustomerHandler(customers))
	protected.Get("/customers/:id", customer.GetCustomerHandler(customers))
	protected.Put("/customers/:id", writers, customer.UpdateCustomerHandler(customers))
	protected.Delete("/customers/:id", writers, customer.DeleteCustomerHandler(customers))

	// Sales
	protected.Get("/sales", sales.ListSalesHandler(salesSvc))
	protected.Post("/sales", writers, sales.CreateSaleHandler(salesSvc))
	protected.Get("/sales/:id", sales.GetSaleHandler(salesSvc))
	protected.Put("/sales/:id", writers, sales.UpdateSaleHandler(salesSvc))

	// Dashboard
	protected.Get("/dashboard", dashboard.OverviewHandler(dash))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			config.LogError(logger, "main", "shutdown", "fiber shutdown", nil, err)
		}
	}()

	logger.WithField("port", cfg.HTTPPort).Info("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.Fatalf("listen: %v", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

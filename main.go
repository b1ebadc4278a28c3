package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/coupons"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/otp"
	"storefront/internal/payments"
	"storefront/internal/tokens"
	"storefront/internal/users"
)

func main() {
	config.Load()
	cfg := config.AppEnv

	log := logger.New(cfg.AppEnv, cfg.LogLevel, "storefront")
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", logger.Error(err))
		os.Exit(1)
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Error("mongo connect failed", logger.Error(err))
		os.Exit(1)
	}
	db := client.Database(cfg.DBName)
	log.Info("mongo connected", logger.String("db", db.Name()))

	if err := database.EnsureIndexes(db, log); err != nil {
		log.Warn("index setup incomplete", logger.Error(err))
	}

	rdb, err := database.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn("redis unavailable, using mongo for otp and disabling rate limits", logger.Error(err))
	}

	var publisher events.Publisher = events.LogPublisher{Log: log}
	if cfg.AMQPURL != "" {
		publisher = events.NewAMQPPublisher(cfg.AMQPURL, cfg.NotificationQueue, log)
	}
	defer func() { _ = publisher.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AMQPURL != "" {
		notifier := events.Notifier{Mailer: events.LogMailer{Log: log}}
		go events.Consume(ctx, cfg.AMQPURL, cfg.NotificationQueue, notifier.Handle, log)
	}

	m := metrics.New("storefront")
	signer := auth.NewSigner(cfg.JWTSecret, cfg.AccessTokenTTL)

	userStore := users.NewMongoStore(db)
	session := handlers.Session{
		Users:   userStore,
		Signer:  signer,
		Tokens:  tokens.NewManager(tokens.NewMongoStore(db), cfg.RefreshTokenTTL, log),
		Cookies: auth.Cookies{Secure: cfg.CookieSecure},
		Metrics: m,
		Log:     log,
	}

	var otpStore otp.Store = otp.NewMongoStore(db)
	if rdb != nil {
		otpStore = otp.NewRedisStore(rdb)
	}
	codes := otp.NewService(otpStore, publisher, log, cfg.OTPTTL, cfg.OTPMaxAttempts).
		WithIssueLimit(cfg.OTPMaxIssues, cfg.OTPIssueWindow)

	carts := cart.NewService(cart.NewMongoStore(db))
	checkout := orders.NewService(orders.NewMongoStore(db), publisher, log, cfg.ShippingFee)
	orderRepo := orders.NewRepository(db)
	couponStore := coupons.NewMongoStore(db)
	gateway := payments.NewGateway(cfg.SSLGatewayURL, cfg.SSLValidateURL, cfg.SSLStoreID, cfg.SSLStorePasswd)
	paymentFlow := payments.NewService(payments.NewMongoStore(db), gateway, orderRepo, publisher, log, cfg.PublicBaseURL)
	uploads := handlers.Uploads{Dir: cfg.UploadDir}

	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.CORS(strings.Split(cfg.CORSOrigin, ",")...),
		m.Middleware(),
	)
	r.Static("/uploads", cfg.UploadDir)

	registerRoutes(r, routeDeps{
		cfg:         cfg,
		log:         log,
		db:          db,
		rdb:         rdb,
		metrics:     m,
		signer:      signer,
		session:     session,
		codes:       codes,
		carts:       carts,
		checkout:    checkout,
		orderRepo:   orderRepo,
		couponStore: couponStore,
		payments:    paymentFlow,
		uploads:     uploads,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server starting", logger.String("port", cfg.Port), logger.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", logger.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.Warn("mongo disconnect failed", logger.Error(err))
	}
	log.Info("server stopped")
}

type routeDeps struct {
	cfg         config.Config
	log         logger.Logger
	db          *mongo.Database
	rdb         *redis.Client
	metrics     *metrics.Metrics
	signer      *auth.Signer
	session     handlers.Session
	codes       *otp.Service
	carts       *cart.Service
	checkout    *orders.Service
	orderRepo   *orders.Repository
	couponStore coupons.Store
	payments    *payments.Service
	uploads     handlers.Uploads
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	log := d.log
	requireAuth := middleware.RequireAuth(d.signer)
	adminOnly := middleware.AdminAuth(d.signer)
	limit := func(prefix string) gin.HandlerFunc {
		return middleware.RateLimit(middleware.RateLimitConfig{
			Enabled:        d.cfg.RateLimitEnabled,
			Prefix:         prefix,
			Capacity:       d.cfg.RateLimitCapacity,
			RefillTokens:   d.cfg.RateLimitRefill,
			RefillInterval: d.cfg.RateLimitInterval,
		}, d.rdb, log)
	}

	r.GET("/healthz", handlers.Health(d.db, d.rdb, log))
	r.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", handlers.Register(d.session))
		authGroup.POST("/login", limit("login"), handlers.Login(d.session))
		authGroup.POST("/refresh", handlers.Refresh(d.session))
		authGroup.DELETE("/logout", handlers.Logout(d.session))
		authGroup.POST("/logout-all", requireAuth, handlers.LogoutAll(d.session))
		authGroup.POST("/password-change", requireAuth, handlers.ChangePassword(d.session))
		authGroup.POST("/password-reset-request", limit("otp-request"), handlers.RequestPasswordReset(d.session, d.codes))
		authGroup.POST("/password-reset", limit("otp-verify"), handlers.ResetPassword(d.session, d.codes))
		authGroup.GET("/me", requireAuth, handlers.Me(d.session))
	}

	userGroup := r.Group("/users", requireAuth)
	{
		userGroup.GET("/cart", handlers.GetCart(d.carts, log))
		userGroup.POST("/cart", handlers.AddCartItem(d.carts, log))
		userGroup.DELETE("/cart", handlers.ClearCart(d.carts, log))
		userGroup.PATCH("/cart/:variantId", handlers.UpdateCartItem(d.carts, log))
		userGroup.DELETE("/cart/:variantId", handlers.RemoveCartItem(d.carts, log))
		userGroup.GET("/:id", handlers.GetUser(d.session.Users, log))
		userGroup.PATCH("/:id", handlers.UpdateUser(d.session.Users, log))
	}

	r.GET("/products", handlers.GetProducts(d.db, log))
	r.GET("/products/:idOrSlug", handlers.GetProduct(d.db, log))
	r.POST("/products", adminOnly, handlers.CreateProduct(d.db, log))
	r.PATCH("/products/:id", adminOnly, handlers.UpdateProduct(d.db, log))
	r.DELETE("/products/:id", adminOnly, handlers.DeleteProduct(d.db, d.uploads, log))
	r.POST("/products/:id/variants", adminOnly, handlers.AddVariants(d.db, log))
	r.PATCH("/variants/:id", adminOnly, handlers.UpdateVariant(d.db, log))
	r.POST("/uploads/images", adminOnly, handlers.UploadImages(d.uploads, log))

	r.GET("/categories", handlers.GetCategories(d.db, log))
	r.GET("/categories/:idOrSlug", handlers.GetCategory(d.db, log))
	r.POST("/categories", adminOnly, handlers.CreateCategory(d.db, log))
	r.PATCH("/categories/:id", adminOnly, handlers.UpdateCategory(d.db, log))
	r.DELETE("/categories/:id", adminOnly, handlers.DeleteCategory(d.db, log))

	couponGroup := r.Group("/coupons")
	{
		couponGroup.POST("/validate", requireAuth, handlers.ValidateCoupon(d.checkout, log))
		couponGroup.POST("", adminOnly, handlers.CreateCoupon(d.couponStore, log))
		couponGroup.GET("", adminOnly, handlers.ListCoupons(d.couponStore, log))
		couponGroup.GET("/:id", adminOnly, handlers.GetCoupon(d.couponStore, log))
		couponGroup.PATCH("/:id", adminOnly, handlers.UpdateCoupon(d.couponStore, log))
		couponGroup.DELETE("/:id", adminOnly, handlers.DeleteCoupon(d.couponStore, log))
	}

	orderGroup := r.Group("/orders")
	{
		orderGroup.POST("", middleware.OptionalAuth(d.signer), handlers.PlaceOrder(d.checkout, d.metrics, log))
		orderGroup.GET("", requireAuth, handlers.ListOrders(d.orderRepo, log))
		orderGroup.GET("/:orderId", requireAuth, handlers.GetOrder(d.orderRepo, log))
		orderGroup.PATCH("/:orderId", adminOnly, handlers.UpdateOrder(d.orderRepo, log))
	}

	paymentGroup := r.Group("/payments")
	{
		paymentGroup.POST("/init", handlers.InitPayment(d.payments, log))
		paymentGroup.POST(strings.TrimPrefix(payments.SuccessPath, "/payments"), handlers.PaymentCallback(d.payments, payments.SuccessPath, models.PaymentSuccess, d.metrics, log))
		paymentGroup.POST(strings.TrimPrefix(payments.FailPath, "/payments"), handlers.PaymentCallback(d.payments, payments.FailPath, models.PaymentFailed, d.metrics, log))
		paymentGroup.POST(strings.TrimPrefix(payments.CancelPath, "/payments"), handlers.PaymentCallback(d.payments, payments.CancelPath, models.PaymentCancelled, d.metrics, log))
	}
}

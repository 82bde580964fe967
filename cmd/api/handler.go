package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	authdelivery "blogpost-backend/internal/auth/delivery"
	authdomain "blogpost-backend/internal/auth/domain"
	authrepo "blogpost-backend/internal/auth/repository"
	"blogpost-backend/internal/auth/scheduler"
	"blogpost-backend/internal/auth/token"
	authusecase "blogpost-backend/internal/auth/usecase"
	postdelivery "blogpost-backend/internal/post/delivery"
	postdomain "blogpost-backend/internal/post/domain"
	postrepo "blogpost-backend/internal/post/repository"
	"blogpost-backend/internal/post/search"
	postusecase "blogpost-backend/internal/post/usecase"
	"blogpost-backend/pkg/config"
	"blogpost-backend/pkg/logger"
	"blogpost-backend/pkg/middleware"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler owns every long-lived dependency of the HTTP service.
type Handler struct {
	cfg *config.Config
	db  *gorm.DB

	redis     *redis.Client
	validator *token.Validator
	issuer    *token.Issuer
	tokenRepo authrepo.TokenRepository

	authHandler *authdelivery.AuthHandler
	postHandler *postdelivery.PostHandler

	searcher search.Searcher
	indexer  *postusecase.Indexer
	bus      *EventBus
	pruner   *scheduler.TokenPruner

	ipLimiter   *middleware.RateLimiter
	userLimiter *middleware.RateLimiter
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&authdomain.User{}, &authdomain.Token{}, &postdomain.Post{})
}

// NewStrategy picks the token format selected by AUTH_DRIVER.
func NewStrategy(cfg *config.Config) token.Strategy {
	if cfg.AuthDriver == config.AuthDriverJWT {
		return token.NewJWTStrategy(cfg.JWTSecret, cfg.ServiceName)
	}
	return token.NewOpaqueStrategy()
}

// NewValidator builds a token validator over db.
func NewValidator(cfg *config.Config, db *gorm.DB) *token.Validator {
	return token.NewValidator(authrepo.NewTokenRepository(db), authrepo.NewUserRepository(db), NewStrategy(cfg))
}

// NewIndexer wires the search backend to the posts table.
func NewIndexer(ctx context.Context, cfg *config.Config, db *gorm.DB) (*postusecase.Indexer, search.Searcher, error) {
	searcher, err := search.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("search backend: %w", err)
	}
	return postusecase.NewIndexer(postrepo.NewGormPostRepository(db), searcher), searcher, nil
}

func NewHandler(ctx context.Context, cfg *config.Config, db *gorm.DB) (*Handler, error) {
	h := &Handler{cfg: cfg, db: db}

	userRepo := authrepo.NewUserRepository(db)
	h.tokenRepo = authrepo.NewTokenRepository(db)
	postRepo := postrepo.NewGormPostRepository(db)

	strategy := NewStrategy(cfg)
	h.issuer = token.NewIssuer(h.tokenRepo, strategy, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	h.validator = token.NewValidator(h.tokenRepo, userRepo, strategy)
	logger.Info("token strategy selected", zap.String("driver", strategy.Name()))

	var limiter authrepo.LoginLimiter
	if cfg.RedisAddr != "" {
		h.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := h.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, login lockout will fail open", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		limiter = authrepo.NewRedisLoginLimiter(h.redis, cfg.LoginMaxAttempts, cfg.LoginLockout)
	} else {
		logger.Warn("REDIS_ADDR not set, login lockout disabled")
	}

	authUc := authusecase.NewAuthUsecase(userRepo, h.tokenRepo, limiter, h.issuer, h.validator)
	h.authHandler = authdelivery.NewAuthHandler(authUc, authdelivery.CookieConfig{
		Name:   cfg.RefreshCookieName,
		Secure: cfg.IsProduction(),
		TTL:    cfg.RefreshTokenTTL,
	})

	var err error
	h.indexer, h.searcher, err = NewIndexer(ctx, cfg, db)
	if err != nil {
		h.Close()
		return nil, err
	}
	// The memory backend starts empty; fill it before the first request.
	if cfg.SearchDriver == config.SearchDriverMemory {
		n, err := h.indexer.Reindex(ctx)
		if err != nil {
			logger.Warn("initial reindex failed", zap.Error(err))
		} else {
			logger.Info("search index rebuilt", zap.Int("posts", n))
		}
	}

	h.bus, err = NewEventBus(ctx, cfg, h.indexer)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("event bus: %w", err)
	}

	h.postHandler = postdelivery.NewPostHandler(postusecase.NewPostUsecase(postRepo, h.searcher, h.bus.Publisher))

	h.ipLimiter = middleware.NewRateLimiter(cfg.RateLimitIPRPS, cfg.RateLimitBurst)
	h.userLimiter = middleware.NewRateLimiter(cfg.RateLimitUserRPS, cfg.RateLimitBurst)
	h.pruner = scheduler.NewTokenPruner(h.tokenRepo, cfg.TokenPruneEvery)

	return h, nil
}

// Start serves HTTP until ctx is cancelled, then drains in-flight requests.
func (h *Handler) Start(ctx context.Context, addr string) error {
	h.pruner.Start()
	h.ipLimiter.StartCleanup(ctx, time.Minute)
	h.userLimiter.StartCleanup(ctx, time.Minute)
	h.bus.StartConsumer(ctx, h.indexer)
	if err := h.bus.StartTokenResponder(ctx, h.cfg, h.validator); err != nil {
		logger.Warn("token responder disabled", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases background workers and connections. Safe on a partially built Handler.
func (h *Handler) Close() {
	if h.pruner != nil {
		h.pruner.Stop()
	}
	if h.bus != nil {
		h.bus.Close()
	}
	if h.redis != nil {
		_ = h.redis.Close()
	}
}

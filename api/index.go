// Package api assembles the monolithic HTTP router: every endpoint lives in
// one chi router so the service can run equally as a standalone server or as
// a single serverless function.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"reunitems-backend/pkg/config"
	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/handlers"
	"reunitems-backend/pkg/membership"
	custommw "reunitems-backend/pkg/middleware"
	"reunitems-backend/pkg/storage"
	"reunitems-backend/pkg/utils"
)

const version = "1.0.0"

var (
	sharedRouter http.Handler
	sharedOnce   sync.Once
	sharedErr    error
)

// Handler is the serverless entry point. Resources are built once per
// process and reused across invocations.
func Handler(w http.ResponseWriter, r *http.Request) {
	sharedOnce.Do(func() {
		cfg := config.GetCached()
		if err := cfg.Validate(); err != nil {
			sharedErr = err
			return
		}
		db, err := database.NewDatabase(database.DatabaseConfig{
			UseLocalDB:   cfg.UseLocalDB,
			LocalDataDir: cfg.LocalDataDir,
			PostgresDSN:  cfg.PostgresDSN,
			Debug:        cfg.Debug,
		})
		if err != nil {
			sharedErr = err
			return
		}
		store := newStorageOrNil(cfg)
		sharedRouter = NewRouter(cfg, db, store)
	})

	if sharedErr != nil {
		utils.WriteInternalServerErrorResponse(w, "Service initialization failed: "+sharedErr.Error())
		return
	}
	sharedRouter.ServeHTTP(w, r)
}

// newStorageOrNil connects to object storage; image endpoints degrade to
// 503 when it is unavailable rather than taking the whole service down.
func newStorageOrNil(cfg *config.Config) *storage.MinIOStorage {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.NewMinIOStorage(ctx, storage.Config{
		Endpoint:       cfg.MinioEndpoint,
		PublicEndpoint: cfg.MinioPublicEndpoint,
		AccessKey:      cfg.MinioAccessKey,
		SecretKey:      cfg.MinioSecretKey,
		Bucket:         cfg.MinioBucket,
		UseSSL:         cfg.MinioUseSSL,
	})
	if err != nil {
		log.Warn().Err(err).Msg("object storage unavailable, image uploads disabled")
		return nil
	}
	return store
}

// NewRouter builds the full middleware stack and route table
func NewRouter(cfg *config.Config, db database.DatabaseInterface, store *storage.MinIOStorage) http.Handler {
	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db, store)
	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(custommw.RequestLogger)
	router.Use(custommw.Recoverer)
	router.Use(custommw.CORS(cfg))
	router.Use(middleware.Timeout(25 * time.Second))
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface, store *storage.MinIOStorage) {
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	ms := membership.NewService(db)

	authHandler := handlers.NewAuthHandler(db, jwtService, ms)
	orgHandler := handlers.NewOrgHandler(db, ms)
	locationHandler := handlers.NewLocationHandler(db, ms)
	itemHandler := handlers.NewItemHandler(db, ms, store)
	claimHandler := handlers.NewClaimHandler(db, ms)
	requestHandler := handlers.NewRequestHandler(db, ms)
	healthHandler := handlers.NewHealthHandler(db, version)

	requireAuth := custommw.AuthMiddleware(cfg)
	optionalAuth := custommw.OptionalAuthMiddleware(cfg)

	router.Get("/", healthHandler.Health)
	router.Get("/api/health", healthHandler.Health)

	// Auth
	router.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/me", authHandler.Me)
	})

	// Organizations
	router.Route("/api/orgs", func(r chi.Router) {
		r.Get("/", orgHandler.ListApproved)
		r.With(requireAuth).Post("/", orgHandler.Register)
		r.With(requireAuth).Get("/mine", orgHandler.Mine)
		r.With(requireAuth).Get("/pending", orgHandler.ListPending)

		r.Route("/{orgID}", func(r chi.Router) {
			r.With(optionalAuth).Get("/", orgHandler.Get)
			r.With(requireAuth).Post("/approve", orgHandler.Approve)
			r.With(requireAuth).Post("/deny", orgHandler.Deny)
			r.With(requireAuth).Post("/apply", orgHandler.Apply)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Get("/members", orgHandler.ListMembers)
				r.Post("/members/{userID}/approve", orgHandler.ApproveMember)
				r.Post("/members/{userID}/deny", orgHandler.DenyMember)

				r.Route("/locations", func(r chi.Router) {
					r.Get("/", locationHandler.List)
					r.Post("/", locationHandler.Create)
					r.Get("/{locationID}", locationHandler.Get)
					r.Patch("/{locationID}", locationHandler.Update)
					r.Delete("/{locationID}", locationHandler.Delete)
				})

				r.Route("/items", func(r chi.Router) {
					r.Get("/", itemHandler.List)
					r.Post("/", itemHandler.Create)
					r.Get("/{itemID}", itemHandler.Get)
					r.Get("/{itemID}/admin", itemHandler.AdminDetail)
					r.Patch("/{itemID}", itemHandler.Update)
					r.Delete("/{itemID}", itemHandler.Delete)
					r.Post("/{itemID}/image", itemHandler.UploadImage)
					r.Get("/{itemID}/claims", claimHandler.ListByItem)
					r.Post("/{itemID}/claims", claimHandler.Create)
				})

				r.Route("/requests", func(r chi.Router) {
					r.Get("/", requestHandler.List)
					r.Post("/", requestHandler.Create)
				})
			})
		})
	})

	// Cross-organization endpoints
	router.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/api/items/search", itemHandler.Search)
		r.Get("/api/claims/mine", claimHandler.Mine)
		r.Patch("/api/claims/{claimID}", claimHandler.Update)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, "Endpoint not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed,
			"METHOD_NOT_ALLOWED", "Method not allowed for this endpoint", "")
	})
}

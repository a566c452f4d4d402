package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tableside/api/internal/config"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/gate"
	"github.com/tableside/api/internal/handler"
	mw "github.com/tableside/api/internal/middleware"
	"github.com/tableside/api/internal/service"
	"github.com/tableside/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// system must already hold the loaded gate state.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, g *gate.Gate, system *service.SystemService) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Store factories bind the queries to a pool or a transaction.
	newOrderStore := func(db database.DBTX) service.OrderStore { return database.New(db) }
	newCloseStore := func(db database.DBTX) service.CloseStore { return database.New(db) }
	newPrintStore := func(db database.DBTX) service.PrintStore { return database.New(db) }

	tableService := service.NewTableService(queries, cfg.TableNamePolicy, hub)
	orderService := service.NewOrderService(pool, newOrderStore, g, hub, time.Now)
	closeService := service.NewCloseService(queries, pool, newCloseStore, hub, time.Now, cfg.InvoiceHeader)
	printService := service.NewPrintService(queries, pool, newPrintStore, hub, time.Now)
	reportService := service.NewReportService(queries)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		productHandler := handler.NewProductHandler(queries)
		r.Route("/products", productHandler.RegisterRoutes)

		roomHandler := handler.NewRoomHandler(queries, reportService, time.Local)
		r.Route("/rooms", roomHandler.RegisterRoutes)

		tableHandler := handler.NewTableHandler(tableService, closeService)
		orderHandler := handler.NewOrderHandler(orderService, tableService)
		r.Route("/tables", func(r chi.Router) {
			tableHandler.RegisterRoutes(r)
			r.Route("/{id}/orders", orderHandler.RegisterRoutes)
		})

		systemHandler := handler.NewSystemHandler(system)
		r.Route("/system", systemHandler.RegisterRoutes)

		printHandler := handler.NewPrintQueueHandler(printService)
		r.Route("/print-queue", printHandler.RegisterRoutes)
	})

	log.Debug().Msg("router initialized")
	return r
}

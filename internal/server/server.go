package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/book-market-backend/internal/events"
	"github.com/shinyyama/book-market-backend/internal/handler"
	"github.com/shinyyama/book-market-backend/internal/imagestore"
	appmw "github.com/shinyyama/book-market-backend/internal/middleware"
	"github.com/shinyyama/book-market-backend/internal/repository"
	"github.com/shinyyama/book-market-backend/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the process-level collaborators built in cmd/api.
type Deps struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	Publisher events.Publisher
	Images    imagestore.URLResolver
	Limiter   appmw.RateLimiter
	// Auth puts the acting uid on the echo context.
	Auth     echo.MiddlewareFunc
	Profiles handler.ProfileLookup

	NegotiationRatePerMinute int
	GitSHA                   string
	BuildTime                string
}

type Server struct {
	e *echo.Echo
}

func New(d Deps) *Server {
	if d.Auth == nil {
		d.Auth = denyAll
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(appmw.RequestID)
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", appmw.RequestIDHeader, appmw.DebugUIDHeader},
		ExposeHeaders:    []string{appmw.RequestIDHeader, "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin,
	}))

	customerRepo := repository.NewCustomerRepository(d.DB)
	listingRepo := repository.NewListingRepository(d.DB)
	favRepo := repository.NewFavoriteRepository(d.DB)
	convRepo := repository.NewConversationRepository(d.DB)
	negRepo := repository.NewNegotiationRepository(d.DB)
	txRepo := repository.NewTransactionRepository(d.DB)
	pointsRepo := repository.NewPointsRepository(d.DB)
	notifRepo := repository.NewNotificationRepository(d.DB)
	transactor := repository.NewTransactor(d.DB)

	notifySvc := service.NewNotificationService(notifRepo, d.Publisher, d.Logger)
	customerSvc := service.NewCustomerService(customerRepo)
	pointsSvc := service.NewPointsService(pointsRepo, customerRepo, txRepo, listingRepo, d.Images, d.Logger)
	negSvc := service.NewNegotiationService(negRepo, listingRepo, customerRepo, convRepo, favRepo, txRepo, notifySvc, transactor, d.Logger)
	txSvc := service.NewTransactionService(txRepo, negRepo, listingRepo, customerRepo, pointsSvc, notifySvc, transactor, d.Logger)

	negHandler := handler.NewNegotiationHandler(negSvc, txSvc, d.Logger)
	txHandler := handler.NewTransactionHandler(txSvc, d.Logger)
	pointsHandler := handler.NewPointsHandler(pointsSvc, d.Logger)
	notifHandler := handler.NewNotificationHandler(notifySvc, d.Logger)
	userHandler := handler.NewUserHandler(customerSvc, d.Profiles, d.Logger)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    d.GitSHA,
			"build_time": d.BuildTime,
		})
	})

	api := e.Group("/api")
	api.GET("/users/:uid/public", userHandler.GetPublic)

	authed := api.Group("", d.Auth)
	authed.POST("/me", userHandler.Register)
	authed.GET("/me", userHandler.Me)
	authed.GET("/me/points", pointsHandler.Balance)
	authed.GET("/me/points/history", pointsHandler.History)
	authed.GET("/me/notifications", notifHandler.List)
	authed.POST("/me/notifications/read", notifHandler.MarkRead)

	limit := appmw.RateLimit(d.Limiter, appmw.Quota{
		Scope:  "negotiation",
		Limit:  d.NegotiationRatePerMinute,
		Window: time.Minute,
	}, d.Logger)
	authed.POST("/listings/:id/negotiations", negHandler.Create, limit)
	authed.GET("/negotiations/:id", negHandler.Get)
	authed.POST("/negotiations/:id/accept", negHandler.Accept)
	authed.POST("/negotiations/:id/reject", negHandler.Reject)
	authed.POST("/negotiations/:id/transaction", negHandler.CreateTransaction)

	authed.GET("/transactions/:id", txHandler.Get)
	authed.POST("/transactions/:id/receive", txHandler.ConfirmReceipt)
	authed.POST("/transactions/:id/cancel", txHandler.Cancel)
	authed.POST("/transactions/:id/return", txHandler.RegisterReturn)
	authed.POST("/transactions/:id/return/confirm", txHandler.ConfirmReturn)

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

func allowOrigin(origin string) (bool, error) {
	low := strings.ToLower(origin)
	if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
		strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
		return true, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false, nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, nil
	}
	return strings.HasSuffix(u.Hostname(), "vercel.app"), nil
}

func denyAll(echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
}

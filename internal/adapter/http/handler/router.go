package handler

import (
	"nsimbi-wallet/internal/adapter/http/middleware"
	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 20 // 1 MB

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	WalletSvc      ports.WalletService
	ReportingSvc   ports.ReportingService
	InventorySvc   ports.InventoryService
	UserAdminSvc   ports.UserAdminService
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	RateLimits     map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        *metrics.Metrics   // nil = /metrics disabled
	OpenAPISpec    []byte
	MaxBodyBytes   int64
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	r.Use(middleware.MaxBodySize(maxBody))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	docs := NewDocsHandler(deps.OpenAPISpec)
	r.GET("/api-docs", docs.UI)
	r.GET("/api-docs/spec", docs.Spec)

	// rl returns the group's limiter, or a no-op when limiting is off.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := deps.RateLimits[group]
		if deps.RateLimiter == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	api := r.Group("/api")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := api.Group("/auth", rl(middleware.GroupAuth))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// --- Authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	parentOnly := middleware.RequireRoles(domain.RoleParent)
	merchantOnly := middleware.RequireRoles(domain.RoleMerchant)
	adminOnly := middleware.RequireRoles(domain.RoleAdmin, domain.RoleSuperAdmin)

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.Metrics)
	wallet := api.Group("/wallet", jwtAuth)
	{
		wallet.POST("/topup", rl(middleware.GroupWallet), parentOnly, walletHandler.TopUp)
		wallet.POST("/lookup-student", rl(middleware.GroupRead), parentOnly, walletHandler.LookupStudent)
		wallet.POST("/transfer", rl(middleware.GroupWallet), parentOnly, walletHandler.Transfer)
		wallet.POST("/charge", rl(middleware.GroupWallet), merchantOnly, walletHandler.Charge)
		wallet.GET("/balance", rl(middleware.GroupRead), walletHandler.GetBalance)
		wallet.GET("/balance/:userId", rl(middleware.GroupRead), walletHandler.GetBalance)
	}

	txHandler := NewTransactionHandler(deps.ReportingSvc)
	api.GET("/transactions", jwtAuth, rl(middleware.GroupRead), txHandler.List)

	inventoryHandler := NewInventoryHandler(deps.InventorySvc)
	inventory := api.Group("/inventory", jwtAuth, merchantOnly)
	{
		inventory.GET("", rl(middleware.GroupRead), inventoryHandler.List)
		inventory.POST("", rl(middleware.GroupAdmin), inventoryHandler.Create)
		inventory.PUT("/:id", rl(middleware.GroupAdmin), inventoryHandler.Update)
		inventory.DELETE("/:id", rl(middleware.GroupAdmin), inventoryHandler.Delete)
	}

	adminHandler := NewAdminHandler(deps.UserAdminSvc, deps.AuthSvc)
	admin := api.Group("/admin", jwtAuth, adminOnly, rl(middleware.GroupAdmin))
	{
		admin.POST("/user/reset-pin", adminHandler.ResetPin)
		admin.POST("/user/sync-nfc", adminHandler.SyncNFC)
		admin.GET("/stats", txHandler.Stats)
	}

	// Campus admins share the directory but none of the other admin routes.
	users := api.Group("/admin/users", jwtAuth, middleware.RequireRoles(domain.DirectoryManagers...), rl(middleware.GroupAdmin))
	{
		users.GET("", adminHandler.ListUsers)
		users.POST("", adminHandler.CreateUser)
	}

	return r
}

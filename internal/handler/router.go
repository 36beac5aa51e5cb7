package handler

import (
	"context"
	"net/http"

	"go-marketplace-pos/internal/middleware"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/service"
	"go-marketplace-pos/internal/ws"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Deps is everything the HTTP layer needs. Hub, RateStore, Metrics and Health are optional.
type Deps struct {
	AppName string
	Log     *logger.Logger

	Auth        service.AuthService
	Users       service.UserService
	Products    service.ProductService
	Inventory   service.InventoryService
	Orders      service.OrderService
	Payments    service.PaymentService
	Webhooks    service.WebhookService
	Commissions service.CommissionService
	Dashboard   service.DashboardService

	Hub           *ws.Hub
	RateStore     middleware.RateLimitStore
	PaymentPolicy middleware.RateLimitPolicy
	Metrics       http.Handler
	Health        func(ctx context.Context) error
}

// NewApp builds the fiber app with middleware and every route mounted.
func NewApp(d Deps) *fiber.App {
	if d.Log == nil {
		d.Log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		AppName:      d.AppName,
		ErrorHandler: middleware.ErrorHandler(d.Log),
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestContext(d.Log))

	registerRoutes(app, d)
	return app
}

func registerRoutes(app *fiber.App, d Deps) {
	authHandler := NewAuthHandler(d.Auth)
	userHandler := NewUserHandler(d.Users)
	productHandler := NewProductHandler(d.Products)
	invHandler := NewInventoryHandler(d.Inventory)
	orderHandler := NewOrderHandler(d.Orders)
	paymentHandler := NewPaymentHandler(d.Payments, d.Webhooks)
	commissionHandler := NewCommissionHandler(d.Commissions)
	dashHandler := NewDashboardHandler(d.Dashboard)

	requireAuth := middleware.RequireAuth(d.Auth, d.Log)
	adminOnly := middleware.RequireRole(model.RoleMasterAdmin, model.RoleAdmin)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if d.Health != nil {
			if err := d.Health(c.UserContext()); err != nil {
				return apperr.Wrap(apperr.CodeDependency, err, "Service unavailable")
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics))
	}

	api := app.Group("/api")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Post("/validate-token", authHandler.ValidateToken)
	auth.Post("/heartbeat", requireAuth, authHandler.Heartbeat)

	// Storefront catalog and checkout
	api.Get("/products", productHandler.GetProducts)
	api.Get("/products/:id", productHandler.GetProduct)
	api.Get("/products/:id/sizes", invHandler.GetProductSizes)
	api.Get("/products/:id/color-stocks", invHandler.GetProductColorStocks)

	payments := api.Group("/payments")
	payments.Post("/initiate",
		middleware.RateLimit(d.PaymentPolicy, d.RateStore, d.Log),
		middleware.OptionalAuth(d.Auth, d.Log),
		paymentHandler.InitiatePayment)
	// Gateways call these; Paystack deliveries are authenticated by signature
	payments.Post("/paystack", paymentHandler.PaystackWebhook)
	payments.Post("/mpesa/callback", paymentHandler.MpesaCallback)

	// ============ PROTECTED ROUTES ============
	api.Post("/orders/create", requireAuth, middleware.RequirePrivilege("order:create"), orderHandler.CreateOrder)
	api.Put("/orders/update", requireAuth, adminOnly, orderHandler.UpdateOrder)
	api.Get("/orders", requireAuth, middleware.RequirePrivilege("order:view"), orderHandler.GetOrders)
	api.Get("/orders/:id", requireAuth, middleware.RequirePrivilege("order:view"), orderHandler.GetOrder)

	api.Post("/products", requireAuth, middleware.RequirePrivilege("product:create"), productHandler.CreateProduct)
	api.Put("/products/:id", requireAuth, middleware.RequirePrivilege("product:update"), productHandler.UpdateProduct)

	api.Get("/inventory", requireAuth, middleware.RequirePrivilege("inventory:view"), invHandler.GetInventory)
	api.Post("/inventory/update", requireAuth, middleware.RequirePrivilege("inventory:update"), invHandler.UpdateStock)
	api.Get("/inventory/movements", requireAuth, middleware.RequirePrivilege("inventory:view"), invHandler.GetMovements)

	api.Get("/employees", requireAuth, middleware.RequireAnyPrivilege("user:view", "order:update"), userHandler.GetEmployees)
	api.Get("/employees/:id/commissions", requireAuth, middleware.RequirePrivilege("commission:view"), commissionHandler.GetSummary)
	api.Post("/employees/:id/commissions/mark-paid", requireAuth, middleware.RequirePrivilege("commission:pay"), commissionHandler.MarkPaid)

	// User Management Routes
	api.Get("/users", requireAuth, middleware.RequirePrivilege("user:view"), userHandler.GetUsers)
	api.Get("/users/:id", requireAuth, middleware.RequirePrivilege("user:view"), userHandler.GetUser)
	api.Post("/users", requireAuth, middleware.RequirePrivilege("user:create"), userHandler.CreateUser)
	api.Put("/users/:id", requireAuth, middleware.RequirePrivilege("user:update"), userHandler.UpdateUser)
	api.Delete("/users/:id", requireAuth, middleware.RequirePrivilege("user:delete"), userHandler.DeleteUser)
	api.Put("/users/:id/privileges", requireAuth, middleware.RequirePrivilege("user:update_privilege"), userHandler.UpdateUserPrivileges)

	api.Get("/roles", requireAuth, userHandler.GetRoles)
	api.Get("/privileges", requireAuth, userHandler.GetPrivileges)

	api.Get("/dashboard/stats", requireAuth, middleware.RequirePrivilege("dashboard:view"), dashHandler.GetDashboardStats)
	api.Get("/dashboard/stock-movement", requireAuth, middleware.RequirePrivilege("dashboard:view"), dashHandler.GetStockMovement)

	if d.Hub != nil {
		registerWebsocket(app, d.Hub)
	}
}

func registerWebsocket(app *fiber.App, hub *ws.Hub) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		if !hub.Join(c) {
			return
		}
		defer hub.Leave(c)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))
}

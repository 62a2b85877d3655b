// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/inventory-ledger/internal/config"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/posting"
	"github.com/your-org/inventory-ledger/internal/domain/report"
	"github.com/your-org/inventory-ledger/internal/interfaces/http/handlers"
	"github.com/your-org/inventory-ledger/internal/interfaces/http/middleware"
	"github.com/your-org/inventory-ledger/internal/pkg/auth"
)

// Services are the domain services the API exposes
type Services struct {
	Documents *document.Service
	Ledger    *ledger.Service
	Posting   *posting.Service
	Reports   *report.Service
}

// SetupRoutes mounts every API route under rg
func SetupRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config) {
	rg.Use(middleware.AuthMiddleware(cfg))

	SetupPurchasingRoutes(rg, svc)
	SetupSalesRoutes(rg, svc)
	SetupInventoryRoutes(rg, svc)
	SetupReportRoutes(rg, svc, cfg)
}

// SetupPurchasingRoutes sets up purchase order and goods receipt routes
func SetupPurchasingRoutes(rg *gin.RouterGroup, svc *Services) {
	purchasing := rg.Group("/purchasing")
	{
		setupDocumentRoutes(purchasing.Group("/purchase-orders"),
			handlers.NewDocumentHandler(document.KindPurchaseOrder, svc.Documents, svc.Posting), auth.RolePurchasing, true)
		setupDocumentRoutes(purchasing.Group("/goods-receipts"),
			handlers.NewDocumentHandler(document.KindGoodsReceipt, svc.Documents, svc.Posting), auth.RolePurchasing, false)
	}
}

// SetupSalesRoutes sets up sales order and shipment routes
func SetupSalesRoutes(rg *gin.RouterGroup, svc *Services) {
	sales := rg.Group("/sales")
	{
		setupDocumentRoutes(sales.Group("/sales-orders"),
			handlers.NewDocumentHandler(document.KindSalesOrder, svc.Documents, svc.Posting), auth.RoleSales, true)
		setupDocumentRoutes(sales.Group("/shipments"),
			handlers.NewDocumentHandler(document.KindShipment, svc.Documents, svc.Posting), auth.RoleSales, false)
	}
}

func setupDocumentRoutes(group *gin.RouterGroup, h *handlers.DocumentHandler, clerkRole string, approvable bool) {
	staff := middleware.RequireRoles(auth.RoleAdmin, auth.RoleManager, clerkRole)
	managers := middleware.RequireRoles(auth.RoleAdmin, auth.RoleManager)

	group.GET("", staff, h.List)
	group.POST("", staff, h.Create)
	group.GET("/:id", staff, h.Get)
	if approvable {
		group.POST("/:id/approve", managers, h.Approve)
	}
	group.POST("/:id/post", managers, h.Post)
	group.POST("/:id/reverse", managers, h.Reverse)
}

// SetupInventoryRoutes sets up ledger and balance routes
func SetupInventoryRoutes(rg *gin.RouterGroup, svc *Services) {
	inventoryHandler := handlers.NewInventoryHandler(svc.Ledger, svc.Posting)

	inventory := rg.Group("/inventory")
	{
		inventory.GET("/transactions", inventoryHandler.ListTransactions)
		inventory.GET("/balances", inventoryHandler.ListBalances)
		inventory.GET("/balances/:item_id/:warehouse_id", inventoryHandler.GetBalance)

		managers := inventory.Group("")
		managers.Use(middleware.RequireRoles(auth.RoleAdmin, auth.RoleManager))
		{
			managers.POST("/transactions", inventoryHandler.Adjust)
			managers.GET("/reconcile", inventoryHandler.Reconcile)
		}
	}
}

// SetupReportRoutes sets up report routes
func SetupReportRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config) {
	reportHandler := handlers.NewReportHandler(svc.Reports, cfg)

	reports := rg.Group("/report")
	reports.Use(middleware.RequireRoles(auth.RoleAdmin, auth.RoleManager))
	{
		reports.GET("/inventory", reportHandler.Inventory)
		reports.GET("/inventory.pdf", reportHandler.InventoryPDF)
		reports.GET("/purchasing/vendor-summary", reportHandler.VendorSummary)
		reports.GET("/sales/customer-summary", reportHandler.CustomerSummary)
	}
}

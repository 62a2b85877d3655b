// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/inventory-ledger/internal/domain/ledger"
	"github.com/your-org/inventory-ledger/internal/domain/posting"
	"github.com/your-org/inventory-ledger/internal/interfaces/http/middleware"
)

// InventoryHandler handles ledger, balance and adjustment endpoints
type InventoryHandler struct {
	ledger  *ledger.Service
	posting *posting.Service
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(ledgerService *ledger.Service, postingService *posting.Service) *InventoryHandler {
	return &InventoryHandler{
		ledger:  ledgerService,
		posting: postingService,
	}
}

// TRANSACTION ENDPOINTS

// ListTransactions handles GET /inventory/transactions
func (h *InventoryHandler) ListTransactions(c *gin.Context) {
	itemID, err := queryUint(c, "item_id")
	if err != nil {
		respondError(c, err)
		return
	}
	warehouseID, err := queryUint(c, "warehouse_id")
	if err != nil {
		respondError(c, err)
		return
	}
	refID, err := queryUint(c, "ref_id")
	if err != nil {
		respondError(c, err)
		return
	}
	limit, offset, err := pagination(c)
	if err != nil {
		respondError(c, err)
		return
	}

	txns, err := h.ledger.ListTransactions(c.Request.Context(), ledger.TransactionFilter{
		ItemID:      itemID,
		WarehouseID: warehouseID,
		TxnType:     ledger.TxnType(c.Query("txn_type")),
		RefType:     c.Query("ref_type"),
		RefID:       refID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Transactions retrieved successfully",
		"data":    txns,
	})
}

// Adjust handles POST /inventory/transactions
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req posting.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.posting.Adjust(c.Request.Context(), &req, middleware.GetActorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Adjustment recorded successfully",
		"data":    result,
	})
}

// BALANCE ENDPOINTS

// ListBalances handles GET /inventory/balances
func (h *InventoryHandler) ListBalances(c *gin.Context) {
	filter, err := balanceFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	balances, err := h.ledger.ListBalances(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Balances retrieved successfully",
		"data":    balances,
	})
}

// GetBalance handles GET /inventory/balances/:item_id/:warehouse_id
func (h *InventoryHandler) GetBalance(c *gin.Context) {
	itemID, err := pathUint(c, "item_id")
	if err != nil {
		respondError(c, err)
		return
	}
	warehouseID, err := pathUint(c, "warehouse_id")
	if err != nil {
		respondError(c, err)
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), itemID, warehouseID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Balance retrieved successfully",
		"data":    balance,
	})
}

// Reconcile handles GET /inventory/reconcile
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	filter, err := balanceFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.ledger.Reconcile(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Reconciliation completed",
		"consistent": report.Consistent(),
		"data":       report,
	})
}

func balanceFilter(c *gin.Context) (ledger.BalanceFilter, error) {
	itemID, err := queryUint(c, "item_id")
	if err != nil {
		return ledger.BalanceFilter{}, err
	}
	warehouseID, err := queryUint(c, "warehouse_id")
	if err != nil {
		return ledger.BalanceFilter{}, err
	}
	return ledger.BalanceFilter{ItemID: itemID, WarehouseID: warehouseID}, nil
}

// internal/interfaces/http/handlers/document.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/inventory-ledger/internal/domain/document"
	"github.com/your-org/inventory-ledger/internal/domain/posting"
	"github.com/your-org/inventory-ledger/internal/interfaces/http/middleware"
)

// DocumentHandler serves one document kind: purchase orders, goods receipts,
// sales orders or shipments
type DocumentHandler struct {
	kind      document.Kind
	documents *document.Service
	posting   *posting.Service
}

// NewDocumentHandler creates a handler for kind
func NewDocumentHandler(kind document.Kind, documents *document.Service, postingService *posting.Service) *DocumentHandler {
	return &DocumentHandler{
		kind:      kind,
		documents: documents,
		posting:   postingService,
	}
}

// Create handles POST on the collection
func (h *DocumentHandler) Create(c *gin.Context) {
	var req document.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.Kind = h.kind

	doc, err := h.documents.Create(c.Request.Context(), &req, middleware.GetActorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Document created successfully",
		"data":    doc,
	})
}

// List handles GET on the collection
func (h *DocumentHandler) List(c *gin.Context) {
	counterpartID, err := firstQueryUint(c, "counterpart_id", "vendor_id", "customer_id")
	if err != nil {
		respondError(c, err)
		return
	}
	sourceID, err := firstQueryUint(c, "source_id", "purchase_order_id", "sales_order_id")
	if err != nil {
		respondError(c, err)
		return
	}
	limit, offset, err := pagination(c)
	if err != nil {
		respondError(c, err)
		return
	}

	docs, err := h.documents.List(c.Request.Context(), document.ListFilter{
		Kind:          h.kind,
		Status:        document.Status(c.Query("status")),
		CounterpartID: counterpartID,
		SourceID:      sourceID,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Documents retrieved successfully",
		"data":    docs,
	})
}

// Get handles GET /:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Document retrieved successfully",
		"data":    doc,
	})
}

// Approve handles POST /:id/approve
func (h *DocumentHandler) Approve(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}

	approved, err := h.documents.Approve(c.Request.Context(), doc.ID, middleware.GetActorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Document approved successfully",
		"data":    approved,
	})
}

// Post handles POST /:id/post
func (h *DocumentHandler) Post(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}

	result, err := h.posting.Post(c.Request.Context(), doc.ID, middleware.GetActorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Document posted successfully",
		"data":    result,
	})
}

// Reverse handles POST /:id/reverse
func (h *DocumentHandler) Reverse(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}

	result, err := h.posting.Reverse(c.Request.Context(), doc.ID, middleware.GetActorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Document reversed successfully",
		"data":    result,
	})
}

// load resolves :id to a document of the handler's kind, responding on failure
func (h *DocumentHandler) load(c *gin.Context) (*document.Document, bool) {
	id, err := pathUint(c, "id")
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	doc, err := h.documents.GetKind(c.Request.Context(), h.kind, id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return doc, true
}

// internal/interfaces/http/handlers/report.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/inventory-ledger/internal/config"
	"github.com/your-org/inventory-ledger/internal/domain/report"
	"github.com/your-org/inventory-ledger/internal/pkg/pdf"
)

// ReportHandler handles report endpoints
type ReportHandler struct {
	reports    *report.Service
	pdfService *pdf.Service
	config     *config.Config
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *report.Service, cfg *config.Config) *ReportHandler {
	return &ReportHandler{
		reports:    reports,
		pdfService: pdf.NewService(cfg),
		config:     cfg,
	}
}

// Inventory handles GET /report/inventory
func (h *ReportHandler) Inventory(c *gin.Context) {
	filter, err := balanceFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	valuation, err := h.reports.Inventory(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Inventory report generated successfully",
		"data":    valuation,
	})
}

// InventoryPDF handles GET /report/inventory.pdf
func (h *ReportHandler) InventoryPDF(c *gin.Context) {
	if !h.config.Report.PDFEnabled {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "PDF export is disabled",
		})
		return
	}

	filter, err := balanceFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	valuation, err := h.reports.Inventory(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	pdfBuffer, err := h.pdfService.GenerateValuation(valuation)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate inventory report",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=inventory-%s.pdf", valuation.GeneratedAt.Format("20060102-150405")))
	c.Header("Content-Length", strconv.Itoa(pdfBuffer.Len()))
	c.Data(http.StatusOK, "application/pdf", pdfBuffer.Bytes())
}

// VendorSummary handles GET /report/purchasing/vendor-summary
func (h *ReportHandler) VendorSummary(c *gin.Context) {
	totals, err := h.reports.VendorSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Vendor summary generated successfully",
		"data":    totals,
	})
}

// CustomerSummary handles GET /report/sales/customer-summary
func (h *ReportHandler) CustomerSummary(c *gin.Context) {
	totals, err := h.reports.CustomerSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Customer summary generated successfully",
		"data":    totals,
	})
}

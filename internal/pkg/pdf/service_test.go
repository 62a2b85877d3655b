package pdf

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/inventory-ledger/internal/config"
	"github.com/your-org/inventory-ledger/internal/domain/report"
)

func TestRenderValuationHTML(t *testing.T) {
	cfg := &config.Config{Report: config.ReportConfig{CompanyName: "Acme <Metals>"}}
	svc := NewService(cfg)

	valuation := &report.Valuation{
		Rows: []report.ValuationRow{
			{ItemID: 1, WarehouseID: 1, QtyOnHand: decimal.RequireFromString("20"), AvgCost: decimal.RequireFromString("6"), Value: decimal.RequireFromString("120")},
			{ItemID: 2, WarehouseID: 1, QtyOnHand: decimal.RequireFromString("-3"), AvgCost: decimal.RequireFromString("4"), Value: decimal.RequireFromString("-12"), Negative: true},
		},
		TotalValue:  decimal.RequireFromString("108"),
		Negatives:   1,
		GeneratedAt: time.Date(2024, 2, 3, 4, 5, 0, 0, time.UTC),
	}

	html, err := svc.RenderValuationHTML(valuation)
	require.NoError(t, err)

	page := string(html)
	assert.Contains(t, page, "Acme &lt;Metals&gt;")
	assert.Contains(t, page, "February 3, 2024 04:05 UTC")
	assert.Contains(t, page, "20.0000")
	assert.Contains(t, page, "-12.00")
	assert.Contains(t, page, "108.00")
	assert.Contains(t, page, "1 balance(s) below zero")
}

func TestRenderValuationHTMLRequiresReport(t *testing.T) {
	svc := NewService(&config.Config{})
	_, err := svc.RenderValuationHTML(nil)
	assert.Error(t, err)
}

// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/your-org/inventory-ledger/internal/config"
	"github.com/your-org/inventory-ledger/internal/domain/report"
)

// Service handles PDF generation
type Service struct {
	config *config.Config
	tmpl   *template.Template
}

// NewService creates a new PDF service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		tmpl:   template.Must(template.New("valuation").Parse(valuationTemplate)),
	}
}

// ValuationData represents the data passed to the valuation template
type ValuationData struct {
	CompanyName string            `json:"company_name"`
	GeneratedAt string            `json:"generated_at"`
	Report      *report.Valuation `json:"report"`
}

// GenerateValuation renders an inventory valuation report as PDF
func (s *Service) GenerateValuation(valuation *report.Valuation) (*bytes.Buffer, error) {
	htmlContent, err := s.RenderValuationHTML(valuation)
	if err != nil {
		return nil, fmt.Errorf("failed to generate HTML: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationLandscape)
	pdfg.Title.Set("Inventory Valuation")

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(htmlContent))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}

	return bytes.NewBuffer(pdfg.Bytes()), nil
}

// RenderValuationHTML produces the HTML page the PDF is printed from
func (s *Service) RenderValuationHTML(valuation *report.Valuation) ([]byte, error) {
	if valuation == nil {
		return nil, fmt.Errorf("valuation report is required")
	}
	data := ValuationData{
		CompanyName: s.config.Report.CompanyName,
		GeneratedAt: valuation.GeneratedAt.Format("January 2, 2006 15:04 MST"),
		Report:      valuation,
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

const valuationTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Inventory Valuation</title>
    <style>
        body {
            font-family: Arial, sans-serif;
            margin: 0;
            padding: 20px;
            color: #333;
        }
        .header {
            margin-bottom: 30px;
            border-bottom: 2px solid #eee;
            padding-bottom: 20px;
        }
        .title {
            font-size: 24px;
            font-weight: bold;
            color: #2563eb;
        }
        table {
            width: 100%;
            border-collapse: collapse;
        }
        th, td {
            border: 1px solid #ddd;
            padding: 8px;
        }
        th {
            background-color: #f8f9fa;
            text-align: left;
        }
        .num {
            text-align: right;
        }
        .negative {
            color: #b91c1c;
        }
        .total-row td {
            font-weight: bold;
            border-top: 2px solid #333;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.CompanyName}}</h1>
        <div class="title">Inventory Valuation</div>
        <p>Generated: {{.GeneratedAt}}</p>
        {{if gt .Report.Negatives 0}}<p class="negative">{{.Report.Negatives}} balance(s) below zero</p>{{end}}
    </div>

    <table>
        <thead>
            <tr>
                <th>Item</th>
                <th>Warehouse</th>
                <th class="num">Qty on hand</th>
                <th class="num">Avg cost</th>
                <th class="num">Value</th>
            </tr>
        </thead>
        <tbody>
            {{range .Report.Rows}}
            <tr{{if .Negative}} class="negative"{{end}}>
                <td>{{.ItemID}}</td>
                <td>{{.WarehouseID}}</td>
                <td class="num">{{.QtyOnHand.StringFixed 4}}</td>
                <td class="num">{{.AvgCost.StringFixed 4}}</td>
                <td class="num">{{.Value.StringFixed 2}}</td>
            </tr>
            {{end}}
            <tr class="total-row">
                <td colspan="4">Total</td>
                <td class="num">{{.Report.TotalValue.StringFixed 2}}</td>
            </tr>
        </tbody>
    </table>
</body>
</html>
`

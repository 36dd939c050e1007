package payroll

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

const defaultCurrency = "XAF"

// Service pairs the engine with payslip rendering.
type Service struct {
	Engine   *Engine
	Currency string
}

func NewService(engine *Engine) *Service {
	return &Service{Engine: engine, Currency: defaultCurrency}
}

// GeneratePayslipPDF computes the bulletin and renders it.
func (s *Service) GeneratePayslipPDF(ctx context.Context, in EmployeePeriodInput) ([]byte, Bulletin, error) {
	bulletin, err := s.Engine.Compute(ctx, in)
	if err != nil {
		return nil, Bulletin{}, err
	}
	var buf bytes.Buffer
	if err := RenderPayslip(&buf, bulletin, s.Currency); err != nil {
		return nil, Bulletin{}, err
	}
	return buf.Bytes(), bulletin, nil
}

// RenderPayslip writes a one-page A4 payslip for b.
func RenderPayslip(w io.Writer, b Bulletin, currency string) error {
	if currency == "" {
		currency = defaultCurrency
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Bulletin de paie "+b.Period.String(), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("Bulletin de paie"))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Employé : %s", b.EmployeeID)))
	pdf.Ln(5)
	if b.OrganizationID != "" {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Organisation : %s", b.OrganizationID)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, tr(fmt.Sprintf("Période : %s au %s", b.Period.Start().Format("02/01/2006"), b.Period.End().Format("02/01/2006"))))
	pdf.Ln(10)

	widths := []float64{24, 78, 22, 22, 34}
	header := []string{"Code", "Libellé", "Base", "Taux", "Montant"}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	row := func(line Line) {
		pdf.CellFormat(widths[0], 6, tr(line.Code), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, tr(line.Label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, optionalMoney(line.BaseAmount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, optionalRate(line.AppliedRate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, FormatMoney(line.Amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	for _, line := range b.AllLines() {
		row(line)
	}
	pdf.Ln(4)

	total := func(label string, amount decimal.Decimal) {
		pdf.CellFormat(widths[0]+widths[1]+widths[2]+widths[3], 6, tr(label), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, FormatMoney(amount)+" "+currency, "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Helvetica", "", 10)
	total("Salaire brut", b.Earnings.GrandTotal)
	total("Base CNSS", b.Earnings.SocialBaseTotal)
	total("Base imposable", b.Earnings.FiscalBaseTotal)
	total("Retenues", b.Deductions.Total)
	pdf.SetFont("Helvetica", "B", 11)
	total("Net à payer", b.NetPay)
	pdf.SetFont("Helvetica", "", 9)
	total("Charges patronales", b.EmployerContributions.Total)
	total("Coût employeur", b.EmployerTotalCost)

	if len(b.Warnings) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 8)
		for _, warning := range b.Warnings {
			pdf.MultiCell(0, 4, tr(warning.Message), "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render payslip: %w", err)
	}
	return pdf.Output(w)
}

// FormatMoney renders a whole amount with space-grouped thousands.
func FormatMoney(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

func optionalMoney(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return FormatMoney(*d)
}

func optionalRate(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2) + " %"
}

package billing

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"github.com/tableside/api/internal/model"
)

const (
	receiptWidth = 40
	nameWidth    = 24
)

// RenderInvoice renders the plain-text receipt sent to the print queue.
func RenderInvoice(header string, t model.Table, bill model.BillClose, lines []ConsumptionLine) string {
	var b strings.Builder
	rule := strings.Repeat("-", receiptWidth)

	if header != "" {
		fmt.Fprintln(&b, center(header))
	}
	fmt.Fprintln(&b, center("TABLE "+t.Name))
	fmt.Fprintln(&b, bill.ClosedAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(&b, rule)

	for _, l := range lines {
		fmt.Fprintf(&b, "%s x%-3d %10s\n", fit(l.ProductName, nameWidth), l.Quantity, l.Total.StringFixed(2))
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%-28s %11s\n", "Subtotal", bill.BaseTotal.StringFixed(2))
	if bill.ServiceTaxIncluded {
		fmt.Fprintf(&b, "%-28s %11s\n", "Service (10%)", bill.TaxAmount.StringFixed(2))
	}
	fmt.Fprintf(&b, "%-28s %11s\n", "TOTAL", bill.GrandTotal.StringFixed(2))

	if bill.AddedToRoom() {
		fmt.Fprintln(&b, "Charged to room account")
	} else {
		fmt.Fprintf(&b, "Paid (%s) %s\n", bill.PaymentMethod, bill.AmountPaid.StringFixed(2))
	}
	return b.String()
}

func center(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= receiptWidth {
		return s
	}
	return strings.Repeat(" ", (receiptWidth-n)/2) + s
}

// fit cuts s to width runes, marking the cut with a dot, and pads it with
// spaces to exactly width runes.
func fit(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[:width-1]) + "."
	}
	return s + strings.Repeat(" ", width-len(r))
}

// InvoicePDF renders a receipt-sized PDF of a closed table's bill.
func InvoicePDF(header string, t model.Table, bill model.BillClose, lines []ConsumptionLine) ([]byte, error) {
	var buf bytes.Buffer
	if err := invoiceDoc(header, t, bill, lines).Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

func invoiceDoc(header string, t model.Table, bill model.BillClose, lines []ConsumptionLine) *fpdf.Fpdf {
	// 80mm roll width; height grows with the item count.
	height := 70 + float64(len(lines))*5
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()

	// Core fonts are cp1252; accented names need translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	if header != "" {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(contentW, 7, tr(header), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, tr("Table "+t.Name), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, bill.ClosedAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	col1 := contentW * 0.55
	col2 := contentW * 0.15
	col3 := contentW * 0.30

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Product", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, l := range lines {
		pdf.CellFormat(col1, 5, tr(l.ProductName), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", l.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, l.Total.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(1)

	pdf.CellFormat(col1+col2, 5, "Subtotal", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 5, bill.BaseTotal.StringFixed(2), "", 1, "R", false, 0, "")
	if bill.ServiceTaxIncluded {
		pdf.CellFormat(col1+col2, 5, "Service (10%)", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, bill.TaxAmount.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, bill.GrandTotal.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "I", 7)
	if bill.AddedToRoom() {
		pdf.CellFormat(contentW, 5, "Charged to room account", "", 1, "L", false, 0, "")
	} else {
		pdf.CellFormat(contentW, 5, fmt.Sprintf("Paid by %s", bill.PaymentMethod), "", 1, "L", false, 0, "")
	}

	return pdf
}

package quotes

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// WriteCSV writes one row per quote. Columns are id, createdAt, every
// free-form key seen across the list (sorted), then item count and total.
func WriteCSV(w io.Writer, list []Record) error {
	seen := map[string]bool{}
	for _, r := range list {
		for k := range r.Fields {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cw := csv.NewWriter(w)
	header := append([]string{"id", "createdAt"}, keys...)
	header = append(header, "items", "total")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range list {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatInt(r.ID, 10), r.CreatedAt)
		for _, k := range keys {
			row = append(row, r.String(k))
		}
		row = append(row, strconv.Itoa(len(r.LineItems)), strconv.FormatFloat(r.Total(), 'f', 0, 64))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePDF renders a single quote as a one-page printable document.
func WritePDF(w io.Writer, r Record) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Cotizacion %d", r.ID), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Cotización #%d", r.ID)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Fecha: "+r.CreatedAt), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Datos del cliente", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, k := range r.FieldKeys() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 6, tr(k), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, tr(r.String(k)), "", "L", false)
	}

	if len(r.LineItems) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, "Detalle", "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(100, 7, "Producto", "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, "Cant.", "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, "Precio", "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, "Subtotal", "1", 1, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, it := range r.LineItems {
			pdf.CellFormat(100, 7, tr(it.Name), "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 7, strconv.Itoa(it.Qty), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 7, money(it.Price), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 7, money(it.Price*float64(it.Qty)), "1", 1, "R", false, 0, "")
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(155, 7, "Total neto", "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, money(r.Total()), "1", 1, "R", false, 0, "")
	}

	return pdf.Output(w)
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 0, 64)
}

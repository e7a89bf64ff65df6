package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"carteira/internal/core"
)

const (
	pageMargin = 12.7
	rowHeight  = 7.0
)

// OverviewRow is one user's line in the admin PDF.
type OverviewRow struct {
	User       string
	Period     core.Period
	Late       bool
	Pending    int
	Net        core.Money
	Reports    int
	LastReport string
}

type document struct {
	*fpdf.Fpdf
	tr func(string) string
}

func newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("carteira", true)
	pdf.AddPage()
	return &document{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) heading(size float64, text string) {
	d.SetFont("Helvetica", "B", size)
	d.CellFormat(0, size/2+2, d.tr(text), "", 1, "L", false, 0, "")
}

func (d *document) line(text string) {
	d.SetFont("Helvetica", "", 11)
	d.CellFormat(0, rowHeight, d.tr(text), "", 1, "L", false, 0, "")
}

// table draws a grey header row followed by rows. Columns listed in
// right are right-aligned.
func (d *document) table(widths []float64, header []string, rows [][]string, right map[int]bool) {
	d.SetFont("Helvetica", "B", 10)
	d.SetFillColor(128, 128, 128)
	d.SetTextColor(255, 255, 255)
	for i, h := range header {
		d.CellFormat(widths[i], rowHeight, d.tr(h), "1", 0, "C", true, 0, "")
	}
	d.Ln(-1)

	d.SetFont("Helvetica", "", 9)
	d.SetTextColor(0, 0, 0)
	for _, row := range rows {
		for i, cell := range row {
			align := "L"
			if right[i] {
				align = "R"
			}
			d.CellFormat(widths[i], rowHeight, d.tr(truncate(cell, widths[i])), "1", 0, align, false, 0, "")
		}
		d.Ln(-1)
	}
}

func truncate(s string, width float64) string {
	// about 1.8mm per character at 9pt
	limit := int(width / 1.8)
	r := []rune(s)
	if len(r) <= limit || limit < 4 {
		return s
	}
	return string(r[:limit-3]) + "..."
}

func (d *document) finish(w io.Writer) error {
	if err := d.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := d.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WriteReportPDF renders one archived report for owner.
func WriteReportPDF(w io.Writer, owner string, r core.Report) error {
	d := newDocument(fmt.Sprintf("%s - %s", r.Number, owner))

	d.heading(16, "Relatório de Despesas - "+r.Number)
	d.Ln(2)
	d.heading(12, "Colaborador: "+owner)
	d.line("Período: " + r.PeriodLabel)
	d.line("Submetido em: " + r.SubmittedOn.Display())
	d.Ln(4)

	d.heading(12, "Resumo")
	d.table([]float64{110, 50}, []string{"Descrição", "Valor"}, [][]string{
		{"Total Receitas", r.Summary.TotalIncome.String()},
		{"Total Despesas", r.Summary.TotalExpense.String()},
		{"Saldo Final", r.Summary.Net.String()},
	}, map[int]bool{1: true})
	d.Ln(2)
	d.line(positionLine(r.Summary))
	d.Ln(4)

	if len(r.Transactions) > 0 {
		d.heading(12, "Detalhes das Transações")
		rows := make([][]string, 0, len(r.Transactions))
		for _, tx := range r.Transactions {
			rows = append(rows, []string{
				displayDate(tx),
				tx.Type.Label(),
				tx.Category.Label(),
				tx.Description,
				tx.Amount.String(),
			})
		}
		d.table([]float64{24, 22, 32, 78, 28},
			[]string{"Data", "Tipo", "Categoria", "Descrição", "Valor"}, rows, map[int]bool{4: true})
	}

	return d.finish(w)
}

// WriteOverviewPDF renders the admin's all-users summary.
func WriteOverviewPDF(w io.Writer, generatedOn core.Date, rows []OverviewRow) error {
	d := newDocument("Resumo de utilizadores")

	d.heading(16, "Resumo de utilizadores")
	d.line("Gerado em: " + generatedOn.Display())
	d.Ln(4)

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		late := "Não"
		if r.Late {
			late = "Sim"
		}
		last := r.LastReport
		if last == "" {
			last = "-"
		}
		cells = append(cells, []string{
			r.User,
			r.Period.Label(),
			late,
			strconv.Itoa(r.Pending),
			r.Net.String(),
			strconv.Itoa(r.Reports),
			last,
		})
	}
	d.table([]float64{28, 52, 16, 16, 24, 16, 32},
		[]string{"Utilizador", "Período", "Atraso", "Pend.", "Saldo", "Rel.", "Último"},
		cells, map[int]bool{3: true, 4: true, 5: true})

	return d.finish(w)
}

func positionLine(s core.Summary) string {
	switch s.Position() {
	case core.ToDeliver:
		return "A entregar: " + s.Net.String()
	case core.ToReceive:
		return "A receber: " + s.Net.Abs().String()
	}
	return "Saldo liquidado"
}

func displayDate(tx core.Transaction) string {
	if tx.HasDate() {
		return tx.Date.Display()
	}
	return tx.RawDate
}

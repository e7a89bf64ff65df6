// Package export renders transactions and reports as CSV and PDF.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"carteira/internal/core"
)

var csvHeader = []string{"Date", "Type", "Category", "Description", "Amount"}

// WriteCSV writes txs in insertion order. A transaction whose stored date
// could not be parsed keeps its raw text in the Date column.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		row := []string{
			dateCell(tx),
			tx.Type.Label(),
			tx.Category.Label(),
			tx.Description,
			tx.Amount.Decimal().StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func dateCell(tx core.Transaction) string {
	if tx.HasDate() {
		return tx.Date.String()
	}
	return tx.RawDate
}

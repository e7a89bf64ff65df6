package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"carteira/internal/core"
)

// The record types below are the only place where dates and enums are
// handled as text. Field matching in encoding/json is case-insensitive,
// so files written with capitalised keys ("Date", "Amount") still decode.

type transactionRecord struct {
	ID          string     `json:"id,omitempty"`
	Date        string     `json:"date"`
	Type        string     `json:"type"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Owner       string     `json:"owner,omitempty"`
}

type summaryRecord struct {
	TotalIncome  core.Money `json:"total_income"`
	TotalExpense core.Money `json:"total_expenses"`
	Net          core.Money `json:"net_amount"`
}

type reportRecord struct {
	Sequence     int                 `json:"sequence"`
	Number       string              `json:"number"`
	PeriodStart  string              `json:"period_start,omitempty"`
	PeriodEnd    string              `json:"period_end,omitempty"`
	PeriodLabel  string              `json:"period"`
	SubmittedOn  string              `json:"submission_date,omitempty"`
	Transactions []transactionRecord `json:"transactions"`
	Summary      summaryRecord       `json:"summary"`
}

type periodRecord struct {
	Start   string `json:"start_date"`
	End     string `json:"end_date"`
	Counter int    `json:"report_counter"`
}

var typeNames = map[string]core.TxType{
	"expense": core.Expense,
	"despesa": core.Expense,
	"saída":   core.Expense,
	"income":  core.Income,
	"receita": core.Income,
	"entrada": core.Income,
}

var categoryNames = map[string]core.Category{
	"refeição":         core.CategoryMeal,
	"rh":               core.CategoryHR,
	"recursos humanos": core.CategoryHR,
	"compra":           core.CategoryPurchase,
	"entreguei":        core.CategoryDeliveryGiven,
	"outro":            core.CategoryOther,
	"outros":           core.CategoryOther,
	"serviço":          core.CategoryService,
	"recebi":           core.CategoryDeliveryReceived,
}

func decodeType(s string) (core.TxType, error) {
	if t, ok := typeNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownType, s)
}

func decodeCategory(s string, t core.TxType) (core.Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	c := core.Category(key)
	if !c.IsValid() {
		legacy, ok := categoryNames[key]
		if !ok {
			// "delivery" alone is ambiguous; the type decides the side
			if key == "delivery" {
				if t == core.Income {
					return core.CategoryDeliveryReceived, nil
				}
				return core.CategoryDeliveryGiven, nil
			}
			return "", fmt.Errorf("%w: %q", core.ErrUnknownCategory, s)
		}
		c = legacy
	}
	return c, nil
}

func encodeTransaction(tx core.Transaction) transactionRecord {
	date := tx.Date.String()
	if tx.Date.IsZero() {
		date = tx.RawDate
	}
	return transactionRecord{
		ID:          tx.ID,
		Date:        date,
		Type:        string(tx.Type),
		Category:    string(tx.Category),
		Description: tx.Description,
		Amount:      tx.Amount,
		Owner:       tx.Owner,
	}
}

// decodeTransaction never fails on a bad date: the text is kept in
// RawDate and the transaction stays live.
func decodeTransaction(r transactionRecord) (core.Transaction, error) {
	typ, err := decodeType(r.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	cat, err := decodeCategory(r.Category, typ)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          r.ID,
		Type:        typ,
		Category:    cat,
		Description: r.Description,
		Amount:      r.Amount,
		Owner:       r.Owner,
	}
	if d, err := core.ParseDate(r.Date); err == nil {
		tx.Date = d
	} else {
		tx.RawDate = r.Date
	}
	return tx, nil
}

func EncodeTransactions(txs []core.Transaction) ([]byte, error) {
	recs := make([]transactionRecord, len(txs))
	for i, tx := range txs {
		recs[i] = encodeTransaction(tx)
	}
	return json.MarshalIndent(recs, "", "  ")
}

func DecodeTransactions(data []byte) ([]core.Transaction, error) {
	var recs []transactionRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return decodeTransactionRecords(recs)
}

func decodeTransactionRecords(recs []transactionRecord) ([]core.Transaction, error) {
	txs := make([]core.Transaction, 0, len(recs))
	for i, r := range recs {
		tx, err := decodeTransaction(r)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func EncodeHistory(history []core.Report) ([]byte, error) {
	recs := make([]reportRecord, len(history))
	for i, r := range history {
		txs := make([]transactionRecord, len(r.Transactions))
		for j, tx := range r.Transactions {
			txs[j] = encodeTransaction(tx)
		}
		recs[i] = reportRecord{
			Sequence:     r.Sequence,
			Number:       r.Number,
			PeriodStart:  r.Period.Start.String(),
			PeriodEnd:    r.Period.End.String(),
			PeriodLabel:  r.PeriodLabel,
			SubmittedOn:  r.SubmittedOn.String(),
			Transactions: txs,
			Summary: summaryRecord{
				TotalIncome:  r.Summary.TotalIncome,
				TotalExpense: r.Summary.TotalExpense,
				Net:          r.Summary.Net,
			},
		}
	}
	return json.MarshalIndent(recs, "", "  ")
}

// DecodeHistory fills in what older history files lack: a missing
// sequence is taken from the position, a missing number or label is
// rebuilt from the sequence and period.
func DecodeHistory(data []byte) ([]core.Report, error) {
	var recs []reportRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	out := make([]core.Report, 0, len(recs))
	for i, r := range recs {
		txs, err := decodeTransactionRecords(r.Transactions)
		if err != nil {
			return nil, fmt.Errorf("report %d: %w", i, err)
		}
		rep := core.Report{
			Sequence:     r.Sequence,
			Number:       r.Number,
			PeriodLabel:  r.PeriodLabel,
			Transactions: txs,
			Summary: core.Summary{
				TotalIncome:  r.Summary.TotalIncome,
				TotalExpense: r.Summary.TotalExpense,
				Net:          r.Summary.Net,
			},
		}
		if rep.Sequence == 0 {
			rep.Sequence = i + 1
		}
		if rep.Number == "" {
			rep.Number = core.ReportNumber(rep.Sequence)
		}
		start, errStart := core.ParseDate(r.PeriodStart)
		end, errEnd := core.ParseDate(r.PeriodEnd)
		if errStart == nil && errEnd == nil {
			rep.Period = core.Period{Start: start, End: end}
			if rep.PeriodLabel == "" {
				rep.PeriodLabel = rep.Period.Label()
			}
		}
		if d, err := core.ParseDate(r.SubmittedOn); err == nil {
			rep.SubmittedOn = d
		}
		out = append(out, rep)
	}
	return out, nil
}

func EncodePeriod(st core.PeriodState) ([]byte, error) {
	return json.MarshalIndent(periodRecord{
		Start:   st.Period.Start.String(),
		End:     st.Period.End.String(),
		Counter: st.Counter,
	}, "", "  ")
}

// DecodePeriod rebuilds the end date from the start so the 7-day span
// always holds, and never yields a counter below 1.
func DecodePeriod(data []byte) (core.PeriodState, error) {
	var rec periodRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.PeriodState{}, fmt.Errorf("decode period: %w", err)
	}
	start, err := core.ParseDate(rec.Start)
	if err != nil {
		return core.PeriodState{}, fmt.Errorf("decode period start: %w", err)
	}
	counter := rec.Counter
	if counter < 1 {
		counter = 1
	}
	return core.PeriodState{Period: core.NewPeriod(start), Counter: counter}, nil
}

package allocation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/ledger"
)

// ApplyUnappliedCredit spends the student's unapplied credit on outstanding
// months, oldest month first and rent before admin fee before deposit
// within a month. Credit that finds nothing to settle stays on the 2030
// account and is reported as unallocated.
func (e *Engine) ApplyUnappliedCredit(ctx context.Context, studentID string, date time.Time) (*Result, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, ledger.ErrMissingStudent
	}
	if date.IsZero() {
		date = e.now()
	}
	date = ledger.Truncate(date)

	unlock := e.locks.Lock(studentID)
	defer unlock()

	entries, err := e.studentEntries(ctx, studentID)
	if err != nil {
		return nil, err
	}
	creditAccount := ledger.UnappliedCreditAccount(studentID)
	remaining := accountBalance(entries, creditAccount)
	if !remaining.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ledger.ErrNoUnappliedCredit, studentID)
	}

	balances := Balances(entries, studentID)
	res := &Result{StudentID: studentID, Settlements: []Settlement{}}
	var out []*ledger.Entry

	for i := range balances {
		b := &balances[i]
		for _, c := range ledger.Categories {
			if !remaining.IsPositive() {
				break
			}
			due := b.Outstanding(c)
			if !due.IsPositive() {
				continue
			}
			slice := decimal.Min(remaining, due)
			desc := fmt.Sprintf("Unapplied credit applied: %s %s", c, b.Month)
			out = append(out, &ledger.Entry{
				Date:        date,
				Description: desc,
				Source:      ledger.SourceCreditApplication,
				Metadata: ledger.CreditApplicationMetadata{
					StudentID:      studentID,
					MonthSettled:   b.Month,
					AllocationType: ledger.AllocationType(c),
				},
				Lines: []ledger.Line{
					{AccountCode: creditAccount, Debit: slice, Description: desc},
					{AccountCode: ledger.ReceivableAccount(studentID), Credit: slice, Category: c, Description: desc},
				},
			})
			res.Settlements = append(res.Settlements, Settlement{Month: b.Month, Category: c, Amount: slice})
			b.AddPaid(c, slice)
			remaining = remaining.Sub(slice)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: student %s", ledger.ErrNoOutstanding, studentID)
	}

	if err := e.repo.AppendEntries(ctx, out...); err != nil {
		return nil, fmt.Errorf("apply credit for %s: %w", studentID, err)
	}
	applied := decimal.Zero
	for i := range res.Settlements {
		res.Settlements[i].EntryID = out[i].ID
		applied = applied.Add(res.Settlements[i].Amount)
	}
	res.Unallocated = remaining

	e.metrics.CreditApplied.Add(applied.InexactFloat64())
	e.metrics.EntriesPosted.WithLabelValues(string(ledger.SourceCreditApplication)).Add(float64(len(out)))
	e.logger.Info("unapplied credit applied",
		zap.String("student_id", studentID),
		zap.String("applied", ledger.FormatAmount(applied)),
		zap.String("remaining", ledger.FormatAmount(remaining)),
	)
	events.Emit(ctx, e.publisher, e.logger, events.Event{
		Type:      events.CreditApplied,
		StudentID: studentID,
		EntryIDs:  entryIDs(out),
		Payload:   res,
	})
	return res, nil
}

// ForfeitureRequest moves part of a held deposit to income.
type ForfeitureRequest struct {
	StudentID string
	Amount    decimal.Decimal
	Date      time.Time
	Reason    string
}

// ForfeitDeposit debits the student's deposit liability and credits
// forfeited deposit income. Only deposit that was actually paid and not
// already forfeited can be taken.
func (e *Engine) ForfeitDeposit(ctx context.Context, req ForfeitureRequest) (*ledger.Entry, error) {
	if strings.TrimSpace(req.StudentID) == "" {
		return nil, ledger.ErrMissingStudent
	}
	amount := ledger.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: forfeiture amount must be positive", ledger.ErrInvalidAmount)
	}
	if req.Date.IsZero() {
		req.Date = e.now()
	}

	unlock := e.locks.Lock(req.StudentID)
	defer unlock()

	entries, err := e.studentEntries(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	held := HeldDeposit(entries, req.StudentID)
	if amount.GreaterThan(held) {
		return nil, fmt.Errorf("%w: requested %s, held %s", ledger.ErrInsufficientDeposit,
			ledger.FormatAmount(amount), ledger.FormatAmount(held))
	}

	desc := "Deposit forfeited"
	if req.Reason != "" {
		desc += ": " + req.Reason
	}
	entry := &ledger.Entry{
		Date:        req.Date,
		Description: desc,
		Source:      ledger.SourceDepositForfeiture,
		Metadata: ledger.ForfeitureMetadata{
			StudentID:    req.StudentID,
			Amount:       amount,
			Reason:       req.Reason,
			IsForfeiture: true,
		},
		Lines: []ledger.Line{
			{AccountCode: ledger.DepositAccount(req.StudentID), Debit: amount, Description: desc},
			{AccountCode: ledger.CodeForfeitedDeposits, Credit: amount, Description: desc},
		},
	}
	if err := e.repo.AppendEntries(ctx, entry); err != nil {
		return nil, err
	}

	e.metrics.DepositsForfeited.Add(amount.InexactFloat64())
	e.metrics.EntriesPosted.WithLabelValues(string(entry.Source)).Inc()
	e.logger.Info("deposit forfeited",
		zap.String("student_id", req.StudentID),
		zap.String("amount", ledger.FormatAmount(amount)),
	)
	events.Emit(ctx, e.publisher, e.logger, events.Event{
		Type:      events.DepositForfeited,
		StudentID: req.StudentID,
		EntryIDs:  []string{entry.ID},
		Payload:   entry.Metadata,
	})
	return entry, nil
}

// HeldDeposit is the deposit a student has paid less what was forfeited.
func HeldDeposit(entries []ledger.Entry, studentID string) decimal.Decimal {
	paid := decimal.Zero
	for _, b := range Balances(entries, studentID) {
		paid = paid.Add(b.DepositPaid)
	}
	forfeited := decimal.Zero
	depositAccount := ledger.DepositAccount(studentID)
	for i := range entries {
		if entries[i].Source != ledger.SourceDepositForfeiture || !entries[i].Posted() {
			continue
		}
		for _, l := range entries[i].Lines {
			if l.AccountCode == depositAccount {
				forfeited = forfeited.Add(l.Debit)
			}
		}
	}
	return ledger.Round(paid.Sub(forfeited))
}

package accrual

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/ledger"
)

// ReverseAccrual posts the mirror image of a student's accrual for a month.
// The reversal carries the accrual's own date so both land in the same
// reporting period. A month that has received any settlement cannot be
// reversed; the settlements would be left pointing at nothing.
func (g *Generator) ReverseAccrual(ctx context.Context, studentID string, month ledger.MonthKey, reason string) (*ledger.Entry, error) {
	if !month.Valid() {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidMonth, month)
	}

	unlock := g.locks.Lock(studentID)
	defer unlock()

	accrual, err := g.repo.FindAccrual(ctx, studentID, month)
	if err != nil {
		return nil, err
	}

	related, err := g.repo.ListEntries(ctx, ledger.EntryFilter{
		StudentID: studentID,
		Status:    ledger.StatusPosted,
		Sources: []ledger.Source{
			ledger.SourcePayment,
			ledger.SourceCreditApplication,
			ledger.SourceAccrualReversal,
		},
	})
	if err != nil {
		return nil, err
	}
	for i := range related {
		e := &related[i]
		if e.ObligationMonth() != month {
			continue
		}
		if e.Source == ledger.SourceAccrualReversal {
			return nil, fmt.Errorf("%w: student %s month %s", ledger.ErrDuplicateReversal, studentID, month)
		}
		return nil, fmt.Errorf("%w: student %s month %s settled by entry %s", ledger.ErrAccrualSettled, studentID, month, e.ID)
	}

	reversal := Mirror(accrual, reason)
	if err := g.repo.AppendEntries(ctx, reversal); err != nil {
		return nil, err
	}

	g.metrics.AccrualsReversed.Inc()
	g.metrics.EntriesPosted.WithLabelValues(string(reversal.Source)).Inc()
	g.logger.Info("accrual reversed",
		zap.String("student_id", studentID),
		zap.String("month", string(month)),
		zap.String("accrual_id", accrual.ID),
		zap.String("reversal_id", reversal.ID),
	)
	events.Emit(ctx, g.publisher, g.logger, events.Event{
		Type:      events.AccrualReversed,
		StudentID: studentID,
		EntryIDs:  []string{reversal.ID},
		Payload:   reversal.Metadata,
	})
	return reversal, nil
}

// Mirror builds a reversal of an accrual: every line swaps sides and keeps
// its category.
func Mirror(accrual *ledger.Entry, reason string) *ledger.Entry {
	month := accrual.ObligationMonth()
	lines := make([]ledger.Line, len(accrual.Lines))
	for i, l := range accrual.Lines {
		lines[i] = ledger.Line{
			AccountCode: l.AccountCode,
			AccountName: l.AccountName,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Category:    l.Category,
			Description: "Reversal: " + l.Description,
		}
	}

	desc := fmt.Sprintf("Reversal of rental accrual %s", month)
	if reason != "" {
		desc += ": " + reason
	}
	return &ledger.Entry{
		Date:        accrual.Date,
		Description: desc,
		Source:      ledger.SourceAccrualReversal,
		SourceID:    accrual.ID,
		Metadata: ledger.ReversalMetadata{
			StudentID:       accrual.StudentID,
			Month:           month,
			ReversedEntryID: accrual.ID,
			Reason:          reason,
		},
		Lines: lines,
	}
}

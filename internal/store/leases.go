package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/simonvc/rentledger/internal/ledger"
)

const leaseColumns = `id, student_id, residence_id, room_id, start_date, end_date,
	monthly_rent_minor, monthly_admin_fee_minor, deposit_minor, created_at`

// CreateLease records a lease fact. A lease without a residence is stored,
// since the student records system may send incomplete data; the accrual
// batch reports it instead of posting.
func (s *Store) CreateLease(ctx context.Context, l *ledger.Lease) error {
	if l.ID == "" {
		l.ID = uuid.Must(uuid.NewV7()).String()
	}
	if err := ledger.CheckStudentID(l.StudentID); err != nil {
		return err
	}
	if l.Start.IsZero() {
		return fmt.Errorf("%w: lease %s has no start date", ledger.ErrInvalidLease, l.ID)
	}
	l.CreatedAt = s.now().UTC()

	var end any
	if l.End != nil {
		end = l.End.Format(ledger.DateLayout)
	}
	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO leases (`+leaseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.StudentID, l.ResidenceID, l.RoomID, l.Start.Format(ledger.DateLayout), end,
		ledger.ToMinorUnits(l.MonthlyRent), ledger.ToMinorUnits(l.MonthlyAdminFee), ledger.ToMinorUnits(l.Deposit),
		formatTime(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert lease: %w", err)
	}
	return nil
}

func (s *Store) GetLease(ctx context.Context, id string) (*ledger.Lease, error) {
	leases, err := s.queryLeases(ctx, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(leases) == 0 {
		return nil, fmt.Errorf("%w: %s", ledger.ErrLeaseNotFound, id)
	}
	return &leases[0], nil
}

// ListLeases returns every lease, or a single student's when studentID is set.
func (s *Store) ListLeases(ctx context.Context, studentID string) ([]ledger.Lease, error) {
	if studentID != "" {
		return s.queryLeases(ctx, `student_id = ?`, studentID)
	}
	return s.queryLeases(ctx, `1=1`)
}

// LeasesActiveBetween returns leases overlapping [from, to].
func (s *Store) LeasesActiveBetween(ctx context.Context, from, to time.Time) ([]ledger.Lease, error) {
	return s.queryLeases(ctx,
		`start_date <= ? AND (end_date IS NULL OR end_date >= ?) AND (end_date IS NULL OR end_date >= start_date)`,
		to.Format(ledger.DateLayout), from.Format(ledger.DateLayout))
}

func (s *Store) queryLeases(ctx context.Context, where string, args ...any) ([]ledger.Lease, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE `+where+` ORDER BY start_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}
	defer rows.Close()

	var leases []ledger.Lease
	for rows.Next() {
		var (
			l                  ledger.Lease
			start, createdAt   string
			end                sql.NullString
			rent, fee, deposit int64
		)
		if err := rows.Scan(&l.ID, &l.StudentID, &l.ResidenceID, &l.RoomID, &start, &end,
			&rent, &fee, &deposit, &createdAt); err != nil {
			return nil, fmt.Errorf("scan lease: %w", err)
		}
		if l.Start, err = ledger.ParseDate(start); err != nil {
			return nil, fmt.Errorf("lease %s: %w", l.ID, err)
		}
		if end.Valid {
			t, err := ledger.ParseDate(end.String)
			if err != nil {
				return nil, fmt.Errorf("lease %s: %w", l.ID, err)
			}
			l.End = &t
		}
		l.MonthlyRent = ledger.FromMinorUnits(rent)
		l.MonthlyAdminFee = ledger.FromMinorUnits(fee)
		l.Deposit = ledger.FromMinorUnits(deposit)
		l.CreatedAt = parseTime(createdAt)
		leases = append(leases, l)
	}
	return leases, rows.Err()
}

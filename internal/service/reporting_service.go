package service

import (
	"context"
	"fmt"
	"time"

	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	ledgerRepo ports.LedgerRepository
	now        func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(ledgerRepo ports.LedgerRepository) ports.ReportingService {
	return &reportingService{
		ledgerRepo: ledgerRepo,
		now:        time.Now,
	}
}

// ListEntries returns the ledger entries a user took part in, newest first.
func (s *reportingService) ListEntries(ctx context.Context, params domain.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if params.Type != nil && !params.Type.Valid() {
		return nil, 0, apperror.Validation("invalid type: must be topup, transfer, or payment")
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	entries, total, err := s.ledgerRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}
	return entries, total, nil
}

// GetStats returns per-type ledger volume since the start of period.
// An empty period means the last 30 days.
func (s *reportingService) GetStats(ctx context.Context, period string) (*domain.LedgerStats, error) {
	now := s.now().UTC()

	var since time.Time
	switch period {
	case "day":
		since = now.AddDate(0, 0, -1)
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month", "":
		since = now.AddDate(0, 0, -30)
	case "all":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	stats, err := s.ledgerRepo.GetStats(ctx, since)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ledger stats: %w", err))
	}
	return stats, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

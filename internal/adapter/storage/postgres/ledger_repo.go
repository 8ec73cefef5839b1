package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nsimbi-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LedgerRepo implements ports.LedgerRepository. Rows are only ever inserted.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create appends an entry within the transaction that moved the money.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	details, err := encodeDetails(e.Details)
	if err != nil {
		return err
	}

	query := `INSERT INTO ledger_entries (id, type, amount, from_user_id, to_user_id, description, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, query,
		e.ID, string(e.Type), e.Amount, e.FromUserID, e.ToUserID,
		e.Description, details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// List fetches one participant's entries, newest first, with pagination.
func (r *LedgerRepo) List(ctx context.Context, params domain.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("(l.from_user_id = $%d OR l.to_user_id = $%d)", argIdx, argIdx))
	args = append(args, params.UserID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("l.type = $%d", argIdx))
		args = append(args, string(*params.Type))
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries l %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT l.id, l.type, l.amount, l.from_user_id, l.to_user_id, l.description,
		l.details, l.created_at, s.name, rc.name
		FROM ledger_entries l
		LEFT JOIN users s ON s.id = l.from_user_id
		LEFT JOIN users rc ON rc.id = l.to_user_id
		%s ORDER BY l.created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e       domain.LedgerEntry
			typ     string
			details []byte
		)
		err := rows.Scan(
			&e.ID, &typ, &e.Amount, &e.FromUserID, &e.ToUserID, &e.Description,
			&details, &e.CreatedAt, &e.SenderName, &e.ReceiverName,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger row: %w", err)
		}
		e.Type = domain.EntryType(typ)
		if e.Details, err = decodeDetails(details); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, total, nil
}

// GetStats aggregates count and volume per entry type since the given time.
// A zero since covers the whole ledger.
func (r *LedgerRepo) GetStats(ctx context.Context, since time.Time) (*domain.LedgerStats, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE type = 'topup') AS topups,
		COALESCE(SUM(amount) FILTER (WHERE type = 'topup'), 0) AS topup_volume,
		COUNT(*) FILTER (WHERE type = 'transfer') AS transfers,
		COALESCE(SUM(amount) FILTER (WHERE type = 'transfer'), 0) AS transfer_volume,
		COUNT(*) FILTER (WHERE type = 'payment') AS payments,
		COALESCE(SUM(amount) FILTER (WHERE type = 'payment'), 0) AS payment_volume
		FROM ledger_entries WHERE created_at >= $1`

	var topups, transfers, payments int64
	var topupVol, transferVol, payVol decimal.Decimal
	err := r.pool.QueryRow(ctx, query, since).Scan(
		&topups, &topupVol, &transfers, &transferVol, &payments, &payVol,
	)
	if err != nil {
		return nil, fmt.Errorf("get ledger stats: %w", err)
	}

	stats := &domain.LedgerStats{
		Since: since,
		ByType: []domain.LedgerTypeStats{
			{Type: domain.EntryTypeTopup, Count: topups, Volume: topupVol},
			{Type: domain.EntryTypeTransfer, Count: transfers, Volume: transferVol},
			{Type: domain.EntryTypePayment, Count: payments, Volume: payVol},
		},
	}
	stats.TotalVolume = decimal.Zero
	for _, s := range stats.ByType {
		stats.TotalCount += s.Count
		stats.TotalVolume = stats.TotalVolume.Add(s.Volume)
	}
	return stats, nil
}

// encodeDetails returns nil for an empty payload so the column stays NULL.
func encodeDetails(d domain.PaymentDetails) ([]byte, error) {
	if len(d) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode ledger details: %w", err)
	}
	return b, nil
}

func decodeDetails(b []byte) (domain.PaymentDetails, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var d domain.PaymentDetails
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode ledger details: %w", err)
	}
	return d, nil
}

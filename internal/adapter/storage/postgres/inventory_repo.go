package postgres

import (
	"context"
	"errors"
	"fmt"

	"nsimbi-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const inventoryColumns = `id, merchant_id, name, description, price, stock, created_at, updated_at`

// ErrStockConflict is returned when a decrement would drive stock negative.
var ErrStockConflict = errors.New("insufficient stock")

// InventoryRepo implements ports.InventoryRepository.
type InventoryRepo struct {
	pool Pool
}

// NewInventoryRepo creates a new InventoryRepo.
func NewInventoryRepo(pool Pool) *InventoryRepo {
	return &InventoryRepo{pool: pool}
}

// Create inserts a new item.
func (r *InventoryRepo) Create(ctx context.Context, it *domain.InventoryItem) error {
	query := `INSERT INTO inventory_items (` + inventoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		it.ID, it.MerchantID, it.Name, it.Description, it.Price, it.Stock,
		it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an item owned by it.MerchantID.
func (r *InventoryRepo) Update(ctx context.Context, it *domain.InventoryItem) error {
	query := `UPDATE inventory_items SET name = $1, description = $2, price = $3, stock = $4, updated_at = $5
		WHERE id = $6 AND merchant_id = $7`

	tag, err := r.pool.Exec(ctx, query,
		it.Name, it.Description, it.Price, it.Stock, it.UpdatedAt, it.ID, it.MerchantID,
	)
	if err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory item not found: %s", it.ID)
	}
	return nil
}

// Delete removes an item owned by merchantID. It reports whether a row was removed.
func (r *InventoryRepo) Delete(ctx context.Context, id, merchantID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_items WHERE id = $1 AND merchant_id = $2`, id, merchantID)
	if err != nil {
		return false, fmt.Errorf("delete inventory item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetOwned fetches an item only if merchantID owns it.
func (r *InventoryRepo) GetOwned(ctx context.Context, id, merchantID uuid.UUID) (*domain.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE id = $1 AND merchant_id = $2`

	it, err := scanInventoryItem(r.pool.QueryRow(ctx, query, id, merchantID))
	if err != nil {
		return nil, fmt.Errorf("get inventory item: %w", err)
	}
	return it, nil
}

// ListByMerchant returns a page of a merchant's items ordered by name.
func (r *InventoryRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.InventoryItem, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items WHERE merchant_id = $1`, merchantID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count inventory items: %w", err)
	}

	query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE merchant_id = $1
		ORDER BY name ASC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, merchantID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory items: %w", err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		it := domain.InventoryItem{}
		if err := rows.Scan(
			&it.ID, &it.MerchantID, &it.Name, &it.Description, &it.Price, &it.Stock,
			&it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan inventory row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate inventory rows: %w", err)
	}
	return items, total, nil
}

// GetOwnedForUpdate fetches and locks an item owned by merchantID.
// This MUST be called within a transaction.
func (r *InventoryRepo) GetOwnedForUpdate(ctx context.Context, tx pgx.Tx, id, merchantID uuid.UUID) (*domain.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE id = $1 AND merchant_id = $2 FOR UPDATE`

	it, err := scanInventoryItem(tx.QueryRow(ctx, query, id, merchantID))
	if err != nil {
		return nil, lockError("get inventory item for update", err)
	}
	return it, nil
}

// DecrementStock takes qty units from an item within a transaction. The
// stock guard in the WHERE clause keeps the row non-negative.
func (r *InventoryRepo) DecrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int) error {
	query := `UPDATE inventory_items SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1`

	tag, err := tx.Exec(ctx, query, qty, id)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("decrement stock %s: %w", id, ErrStockConflict)
	}
	return nil
}

func scanInventoryItem(row pgx.Row) (*domain.InventoryItem, error) {
	it := &domain.InventoryItem{}
	err := row.Scan(
		&it.ID, &it.MerchantID, &it.Name, &it.Description, &it.Price, &it.Stock,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return it, nil
}

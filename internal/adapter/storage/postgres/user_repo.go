package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nsimbi-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, password_hash, role, nfc_card_id, student_id_number,
	card_pin_hash, parent_id, student_class, created_at, updated_at`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new user within the transaction that creates its wallet.
func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role),
		u.CardID, u.StudentIDNumber, u.PinHash, u.ParentID, u.StudentClass,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user by UUID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail fetches a user by login email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email", email)
}

// GetByCardID fetches a student by NFC card id.
func (r *UserRepo) GetByCardID(ctx context.Context, cardID string) (*domain.User, error) {
	return r.getOne(ctx, "nfc_card_id", cardID)
}

// GetByStudentIDNumber fetches a student by school id number.
func (r *UserRepo) GetByStudentIDNumber(ctx context.Context, studentIDNumber string) (*domain.User, error) {
	return r.getOne(ctx, "student_id_number", studentIDNumber)
}

// UpdatePinHash replaces a user's card PIN hash.
func (r *UserRepo) UpdatePinHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	return r.updateColumn(ctx, id, "card_pin_hash", pinHash)
}

// UpdateCardID links an NFC card to a user.
func (r *UserRepo) UpdateCardID(ctx context.Context, id uuid.UUID, cardID string) error {
	return r.updateColumn(ctx, id, "nfc_card_id", cardID)
}

// List returns one page of the directory, newest first.
func (r *UserRepo) List(ctx context.Context, params domain.UserListParams) ([]domain.User, int64, error) {
	var (
		where string
		args  []any
	)
	if params.Search != "" {
		where = "WHERE name ILIKE $1 OR email ILIKE $1 OR student_id_number ILIKE $1"
		args = append(args, "%"+likeEscaper.Replace(params.Search)+"%")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

// likeEscaper neutralises LIKE wildcards in a search term.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// getOne looks a user up by a unique column. column is never user input.
func (r *UserRepo) getOne(ctx context.Context, column string, value any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	var role string
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role,
		&u.CardID, &u.StudentIDNumber, &u.PinHash, &u.ParentID, &u.StudentClass,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (r *UserRepo) updateColumn(ctx context.Context, id uuid.UUID, column string, value any) error {
	query := `UPDATE users SET ` + column + ` = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("update user %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

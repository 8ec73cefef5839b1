package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"nsimbi-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memStore backs every in-memory repository. One transaction runs at a time:
// txMu is held from Begin until Commit or Rollback, which stands in for the
// row locks Postgres takes with FOR UPDATE. Rollback replays an undo log so
// failed operations leave no trace.
type memStore struct {
	txMu sync.Mutex

	mu          sync.RWMutex
	users       map[uuid.UUID]*domain.User
	wallets     map[uuid.UUID]*domain.Wallet // keyed by user id
	ledger      []domain.LedgerEntry
	inventory   map[uuid.UUID]*domain.InventoryItem
	idempotency map[string]*domain.IdempotencyLog
	audit       []domain.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]*domain.User),
		wallets:     make(map[uuid.UUID]*domain.Wallet),
		inventory:   make(map[uuid.UUID]*domain.InventoryItem),
		idempotency: make(map[string]*domain.IdempotencyLog),
	}
}

var errNotMemTx = errors.New("transaction was not started by the in-memory transactor")

// --- Transactor ---

type memTransactor struct {
	store *memStore
}

func (t *memTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.store.txMu.Lock()
	return &memTx{store: t.store}, nil
}

// memTx is a pgx.Tx whose writes can be undone.
type memTx struct {
	store *memStore
	undo  []func()
	done  bool
}

func asMemTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.done {
		return nil, errNotMemTx
	}
	return mt, nil
}

// onRollback registers fn to run, under the data lock, if the transaction
// is rolled back.
func (t *memTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.done = true
	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errors.New("nested transactions are not supported") }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                              { return nil }

// --- Users ---

type memUserRepo struct {
	store *memStore
}

func (r *memUserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.users {
		if existing.Email == u.Email {
			return fmt.Errorf("email %s already exists", u.Email)
		}
	}
	stored := *u
	r.store.users[u.ID] = &stored
	mt.onRollback(func() { delete(r.store.users, u.ID) })
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id }), nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email }), nil
}

func (r *memUserRepo) GetByCardID(ctx context.Context, cardID string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.CardID != nil && *u.CardID == cardID }), nil
}

func (r *memUserRepo) GetByStudentIDNumber(ctx context.Context, studentIDNumber string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool {
		return u.StudentIDNumber != nil && *u.StudentIDNumber == studentIDNumber
	}), nil
}

func (r *memUserRepo) UpdatePinHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	return r.update(id, func(u *domain.User) { u.PinHash = &pinHash })
}

func (r *memUserRepo) UpdateCardID(ctx context.Context, id uuid.UUID, cardID string) error {
	return r.update(id, func(u *domain.User) { u.CardID = &cardID })
}

func (r *memUserRepo) List(ctx context.Context, params domain.UserListParams) ([]domain.User, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	term := strings.ToLower(params.Search)
	contains := func(v *string) bool { return v != nil && strings.Contains(strings.ToLower(*v), term) }

	var matched []domain.User
	for _, u := range r.store.users {
		if term == "" || contains(&u.Name) || contains(&u.Email) || contains(u.StudentIDNumber) {
			matched = append(matched, *u)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return []domain.User{}, total, nil
	}
	end := min(start+params.PageSize, len(matched))
	return matched[start:end], total, nil
}

func (r *memUserRepo) find(match func(*domain.User) bool) *domain.User {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, u := range r.store.users {
		if match(u) {
			c := *u
			return &c
		}
	}
	return nil
}

func (r *memUserRepo) update(id uuid.UUID, apply func(*domain.User)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	c := *u
	apply(&c)
	c.UpdatedAt = time.Now().UTC()
	r.store.users[id] = &c
	return nil
}

// --- Wallets ---

type memWalletRepo struct {
	store *memStore
}

func (r *memWalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.wallets[w.UserID]; ok {
		return fmt.Errorf("wallet for user %s already exists", w.UserID)
	}
	stored := *w
	r.store.wallets[w.UserID] = &stored
	mt.onRollback(func() { delete(r.store.wallets, w.UserID) })
	return nil
}

func (r *memWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	w, ok := r.store.wallets[userID]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (r *memWalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	if _, err := asMemTx(tx); err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

func (r *memWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if balance.IsNegative() {
		return fmt.Errorf("wallet %s: balance check violated", walletID)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for userID, w := range r.store.wallets {
		if w.ID != walletID {
			continue
		}
		prev := *w
		next := *w
		next.Balance = balance
		next.UpdatedAt = time.Now().UTC()
		r.store.wallets[userID] = &next
		mt.onRollback(func() { r.store.wallets[userID] = &prev })
		return nil
	}
	return fmt.Errorf("wallet %s not found", walletID)
}

// --- Ledger ---

type memLedgerRepo struct {
	store *memStore
}

func (r *memLedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := len(r.store.ledger)
	r.store.ledger = append(r.store.ledger, *e)
	mt.onRollback(func() { r.store.ledger = r.store.ledger[:n] })
	return nil
}

func (r *memLedgerRepo) List(ctx context.Context, params domain.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []domain.LedgerEntry
	for i := len(r.store.ledger) - 1; i >= 0; i-- {
		e := r.store.ledger[i]
		involved := e.ToUserID == params.UserID || (e.FromUserID != nil && *e.FromUserID == params.UserID)
		if !involved || (params.Type != nil && e.Type != *params.Type) {
			continue
		}
		if e.FromUserID != nil {
			if u, ok := r.store.users[*e.FromUserID]; ok {
				name := u.Name
				e.SenderName = &name
			}
		}
		if u, ok := r.store.users[e.ToUserID]; ok {
			name := u.Name
			e.ReceiverName = &name
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := min(start+params.PageSize, len(matched))
	return matched[start:end], total, nil
}

func (r *memLedgerRepo) GetStats(ctx context.Context, since time.Time) (*domain.LedgerStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	byType := []domain.LedgerTypeStats{
		{Type: domain.EntryTypeTopup, Volume: decimal.Zero},
		{Type: domain.EntryTypeTransfer, Volume: decimal.Zero},
		{Type: domain.EntryTypePayment, Volume: decimal.Zero},
	}
	stats := &domain.LedgerStats{Since: since, TotalVolume: decimal.Zero}
	for _, e := range r.store.ledger {
		if e.CreatedAt.Before(since) {
			continue
		}
		for i := range byType {
			if byType[i].Type == e.Type {
				byType[i].Count++
				byType[i].Volume = byType[i].Volume.Add(e.Amount)
			}
		}
		stats.TotalCount++
		stats.TotalVolume = stats.TotalVolume.Add(e.Amount)
	}
	stats.ByType = byType
	return stats, nil
}

// entries returns a copy of the whole ledger.
func (r *memLedgerRepo) entries() []domain.LedgerEntry {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.LedgerEntry(nil), r.store.ledger...)
}

// --- Inventory ---

type memInventoryRepo struct {
	store *memStore
}

func (r *memInventoryRepo) Create(ctx context.Context, item *domain.InventoryItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *item
	r.store.inventory[item.ID] = &stored
	return nil
}

func (r *memInventoryRepo) Update(ctx context.Context, item *domain.InventoryItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.inventory[item.ID]; !ok {
		return fmt.Errorf("inventory item %s not found", item.ID)
	}
	stored := *item
	r.store.inventory[item.ID] = &stored
	return nil
}

func (r *memInventoryRepo) Delete(ctx context.Context, id, merchantID uuid.UUID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	it, ok := r.store.inventory[id]
	if !ok || it.MerchantID != merchantID {
		return false, nil
	}
	delete(r.store.inventory, id)
	return true, nil
}

func (r *memInventoryRepo) GetOwned(ctx context.Context, id, merchantID uuid.UUID) (*domain.InventoryItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	it, ok := r.store.inventory[id]
	if !ok || it.MerchantID != merchantID {
		return nil, nil
	}
	c := *it
	return &c, nil
}

func (r *memInventoryRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.InventoryItem, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var items []domain.InventoryItem
	for _, it := range r.store.inventory {
		if it.MerchantID == merchantID {
			items = append(items, *it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	total := int64(len(items))
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []domain.InventoryItem{}, total, nil
	}
	return items[start:min(start+pageSize, len(items))], total, nil
}

func (r *memInventoryRepo) GetOwnedForUpdate(ctx context.Context, tx pgx.Tx, id, merchantID uuid.UUID) (*domain.InventoryItem, error) {
	if _, err := asMemTx(tx); err != nil {
		return nil, err
	}
	return r.GetOwned(ctx, id, merchantID)
}

func (r *memInventoryRepo) DecrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	it, ok := r.store.inventory[id]
	if !ok || it.Stock < qty {
		return fmt.Errorf("decrement stock %s: insufficient stock", id)
	}
	prev := *it
	next := *it
	next.Stock -= qty
	r.store.inventory[id] = &next
	mt.onRollback(func() { r.store.inventory[id] = &prev })
	return nil
}

// --- Idempotency ---

type memIdempotencyRepo struct {
	store *memStore
}

func (r *memIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.idempotency[log.Key]; ok {
		return domain.ErrIdempotencyKeyExists
	}
	stored := *log
	r.store.idempotency[log.Key] = &stored
	mt.onRollback(func() { delete(r.store.idempotency, log.Key) })
	return nil
}

func (r *memIdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	l, ok := r.store.idempotency[key]
	if !ok {
		return nil, nil
	}
	c := *l
	return &c, nil
}

// --- Audit ---

type memAuditRepo struct {
	store *memStore
}

func (r *memAuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audit = append(r.store.audit, *log)
	return nil
}

func (r *memAuditRepo) actions() []domain.AuditAction {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.AuditAction, 0, len(r.store.audit))
	for _, l := range r.store.audit {
		out = append(out, l.Action)
	}
	return out
}

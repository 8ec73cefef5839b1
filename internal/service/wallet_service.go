package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"
	"nsimbi-wallet/pkg/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const idempotencyTTL = 24 * time.Hour

const (
	opTransfer = "transfer"
	opCharge   = "charge"
)

// WalletServiceImpl implements ports.WalletService. Each mutating operation
// validates and resolves its collaborators first, then runs every write in
// one database transaction with the touched rows locked FOR UPDATE.
type WalletServiceImpl struct {
	walletRepo    ports.WalletRepository
	ledgerRepo    ports.LedgerRepository
	inventoryRepo ports.InventoryRepository
	idempRepo     ports.IdempotencyRepository
	idempCache    ports.IdempotencyCache // nil = database only
	directory     ports.Directory
	transactor    ports.DBTransactor
	log           zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	inventoryRepo ports.InventoryRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	directory ports.Directory,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:    walletRepo,
		ledgerRepo:    ledgerRepo,
		inventoryRepo: inventoryRepo,
		idempRepo:     idempRepo,
		idempCache:    idempCache,
		directory:     directory,
		transactor:    transactor,
		log:           log,
	}
}

// TopUp credits the caller's wallet from a simulated external source.
func (s *WalletServiceImpl) TopUp(ctx context.Context, req ports.TopUpRequest) (*ports.WalletResult, error) {
	amount, err := money.Normalize(req.Amount)
	if err != nil {
		return nil, amountError(err)
	}

	description, err := topUpDescription(req.Method, req.Details)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, lockFailure("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}

	if !wallet.CanCredit(amount) {
		return nil, apperror.ErrBalanceLimit()
	}

	newBalance := wallet.Balance.Add(amount)
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		Type:        domain.EntryTypeTopup,
		Amount:      amount,
		ToUserID:    req.UserID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.appendEntry(ctx, dbTx, entry); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("method", string(req.Method)).
		Str("amount", money.Format(amount)).
		Msg("topup processed successfully")

	return &ports.WalletResult{EntryID: entry.ID, Balance: newBalance}, nil
}

// Transfer moves funds from a parent to a student.
func (s *WalletServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.WalletResult, error) {
	amount, err := money.Normalize(req.Amount)
	if err != nil {
		return nil, amountError(err)
	}
	if req.ParentID == req.StudentID {
		return nil, apperror.Validation("Cannot transfer to yourself")
	}

	idempKey, reqHash := "", ""
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.ParentID, opTransfer, req.IdempotencyKey)
		if reqHash, err = transferHash(req.StudentID, amount); err != nil {
			return nil, apperror.InternalError(err)
		}
		if prior, err := s.replay(ctx, idempKey, reqHash); err != nil || prior != nil {
			return prior, err
		}
	}

	student, err := s.directory.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve student: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	parentWallet, studentWallet, err := s.lockPair(ctx, dbTx, req.ParentID, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !parentWallet.CanDebit(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}
	if !studentWallet.CanCredit(amount) {
		return nil, apperror.ErrBalanceLimit()
	}

	parentBalance := parentWallet.Balance.Sub(amount)
	if err := s.move(ctx, dbTx, parentWallet, studentWallet, amount); err != nil {
		return nil, err
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		Type:        domain.EntryTypeTransfer,
		Amount:      amount,
		FromUserID:  &req.ParentID,
		ToUserID:    req.StudentID,
		Description: "Transfer to " + student.DisplayName("Student"),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.appendEntry(ctx, dbTx, entry); err != nil {
		return nil, err
	}

	result := &ports.WalletResult{EntryID: entry.ID, Balance: parentBalance}
	record, err := s.remember(ctx, dbTx, idempKey, reqHash, result)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	s.cache(ctx, idempKey, record)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("parent_id", req.ParentID.String()).
		Str("student_id", req.StudentID.String()).
		Str("amount", money.Format(amount)).
		Msg("transfer processed successfully")

	return result, nil
}

// Charge debits a student identified by card and PIN in favour of the
// charging merchant, deducting stock for any inventory-backed line items.
func (s *WalletServiceImpl) Charge(ctx context.Context, req ports.ChargeRequest) (*ports.WalletResult, error) {
	amount, err := money.Normalize(req.Amount)
	if err != nil {
		return nil, amountError(err)
	}
	if strings.TrimSpace(req.CardID) == "" {
		return nil, apperror.Validation("Student NFC card id is required")
	}
	if err := validateChargeItems(req.Items); err != nil {
		return nil, err
	}

	idempKey, reqHash := "", ""
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.MerchantID, opCharge, req.IdempotencyKey)
		if reqHash, err = chargeHash(req.CardID, amount, req.Items); err != nil {
			return nil, apperror.InternalError(err)
		}
		if prior, err := s.replay(ctx, idempKey, reqHash); err != nil || prior != nil {
			return prior, err
		}
	}

	student, err := s.directory.FindByCardID(ctx, req.CardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve card: %w", err))
	}
	if student == nil {
		return nil, apperror.ErrNotFound("Student")
	}
	if student.ID == req.MerchantID {
		return nil, apperror.Validation("Merchant cannot charge its own card")
	}
	if req.Pin == "" {
		return nil, apperror.ErrPinRequired()
	}
	if !student.HasPin() {
		return nil, apperror.ErrPinNotSet()
	}
	ok, err := s.directory.VerifyPin(ctx, student.ID, req.Pin)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify pin: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidPin()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Each raw line is deducted on its own, so a repeated inventory id
	// takes stock once per occurrence.
	for _, item := range req.Items {
		if item.InventoryID == nil {
			continue
		}
		if err := s.takeStock(ctx, dbTx, req.MerchantID, item); err != nil {
			return nil, err
		}
	}

	studentWallet, merchantWallet, err := s.lockPair(ctx, dbTx, student.ID, req.MerchantID)
	if err != nil {
		return nil, err
	}
	if !studentWallet.CanDebit(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}
	if !merchantWallet.CanCredit(amount) {
		return nil, apperror.ErrBalanceLimit()
	}

	studentBalance := studentWallet.Balance.Sub(amount)
	if err := s.move(ctx, dbTx, studentWallet, merchantWallet, amount); err != nil {
		return nil, err
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		Type:        domain.EntryTypePayment,
		Amount:      amount,
		FromUserID:  &student.ID,
		ToUserID:    req.MerchantID,
		Description: chargeDescription(req.Items),
		Details:     groupLineDetails(req.Items),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.appendEntry(ctx, dbTx, entry); err != nil {
		return nil, err
	}

	result := &ports.WalletResult{EntryID: entry.ID, Balance: studentBalance}
	record, err := s.remember(ctx, dbTx, idempKey, reqHash, result)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	s.cache(ctx, idempKey, record)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Str("student_id", student.ID.String()).
		Int("items", len(req.Items)).
		Str("amount", money.Format(amount)).
		Msg("charge processed successfully")

	return result, nil
}

// GetBalance returns the balance of targetUserID. Only admins may read a
// wallet other than their own.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, requester ports.Requester, targetUserID uuid.UUID) (decimal.Decimal, error) {
	if targetUserID == uuid.Nil {
		targetUserID = requester.UserID
	}
	if targetUserID != requester.UserID && !requester.Role.IsPrivileged() {
		return decimal.Zero, apperror.ErrForbidden()
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, targetUserID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return decimal.Zero, apperror.ErrNotFound("Wallet")
	}
	return money.Round(wallet.Balance), nil
}

// LookupStudent resolves a student by school id number.
func (s *WalletServiceImpl) LookupStudent(ctx context.Context, studentIDNumber string) (*domain.StudentSummary, error) {
	studentIDNumber = strings.TrimSpace(studentIDNumber)
	if studentIDNumber == "" {
		return nil, apperror.Validation("Student ID Number is required")
	}

	student, err := s.directory.FindByStudentIDNumber(ctx, studentIDNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup student: %w", err))
	}
	if student == nil {
		return nil, apperror.ErrNotFound("Student")
	}

	summary := student.Summary()
	return &summary, nil
}

// lockPair locks the wallets of a and b in ascending user id order and
// returns them in argument order.
func (s *WalletServiceImpl) lockPair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (*domain.Wallet, *domain.Wallet, error) {
	first, second := a, b
	if bytes.Compare(a[:], b[:]) > 0 {
		first, second = b, a
	}

	locked := make(map[uuid.UUID]*domain.Wallet, 2)
	for _, id := range []uuid.UUID{first, second} {
		w, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, nil, lockFailure("lock wallet", err)
		}
		if w == nil {
			return nil, nil, apperror.ErrNotFound("Wallet")
		}
		locked[id] = w
	}
	return locked[a], locked[b], nil
}

// lockFailure maps a failed FOR UPDATE read. Contention surfaces as a
// retryable 503.
func lockFailure(op string, err error) *apperror.AppError {
	if errors.Is(err, domain.ErrLockContention) {
		return apperror.ErrLockTimeout(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}

func (s *WalletServiceImpl) move(ctx context.Context, tx pgx.Tx, from, to *domain.Wallet, amount decimal.Decimal) error {
	if err := s.walletRepo.UpdateBalance(ctx, tx, from.ID, from.Balance.Sub(amount)); err != nil {
		return apperror.InternalError(fmt.Errorf("debit wallet: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, tx, to.ID, to.Balance.Add(amount)); err != nil {
		return apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}
	return nil
}

func (s *WalletServiceImpl) takeStock(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, item domain.ChargeItem) error {
	inv, err := s.inventoryRepo.GetOwnedForUpdate(ctx, tx, *item.InventoryID, merchantID)
	if err != nil {
		return lockFailure("lock inventory item", err)
	}
	if inv == nil {
		return apperror.Validation(fmt.Sprintf("Item %s not found in inventory", item.Name))
	}

	qty := item.Qty()
	if !inv.HasStock(qty) {
		return apperror.Validation(fmt.Sprintf("Item %s is out of stock (Available: %d)", inv.Name, inv.Stock))
	}
	if err := s.inventoryRepo.DecrementStock(ctx, tx, inv.ID, qty); err != nil {
		return apperror.InternalError(fmt.Errorf("decrement stock: %w", err))
	}
	return nil
}

func (s *WalletServiceImpl) appendEntry(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return apperror.InternalError(fmt.Errorf("build ledger entry: %w", err))
	}
	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("append ledger entry: %w", err))
	}
	return nil
}

// replayRecord is the cached form of a settled request.
type replayRecord struct {
	RequestHash string          `json:"request_hash"`
	Response    json.RawMessage `json:"response"`
}

// replay returns the stored result for key, checking Redis before the
// database. A Redis failure falls through to the database. A stored result
// recorded for a different request is reported as a mismatch.
func (s *WalletServiceImpl) replay(ctx context.Context, key, reqHash string) (*ports.WalletResult, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			var rec replayRecord
			if err := json.Unmarshal(cached, &rec); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("unmarshal cached record: %w", err))
			}
			if rec.RequestHash != reqHash {
				return nil, s.mismatch(key)
			}
			return decodeWalletResult(rec.Response)
		}
	}

	idempLog, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if idempLog == nil {
		return nil, nil
	}
	if !idempLog.Matches(reqHash) {
		return nil, s.mismatch(key)
	}
	return decodeWalletResult(idempLog.ResponseJSON)
}

func (s *WalletServiceImpl) mismatch(key string) *apperror.AppError {
	s.log.Warn().Str("key", key).Err(domain.ErrIdempotencyMismatch).Msg("idempotency key reused")
	return apperror.ErrIdempotencyMismatch()
}

// remember records the result under key inside tx and returns the record to
// cache after commit. A blank key is a no-op.
func (s *WalletServiceImpl) remember(ctx context.Context, tx pgx.Tx, key, reqHash string, result *ports.WalletResult) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	respJSON, err := json.Marshal(result)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}

	err = s.idempRepo.Create(ctx, tx, &domain.IdempotencyLog{
		Key:          key,
		RequestHash:  reqHash,
		EntryID:      result.EntryID,
		ResponseJSON: respJSON,
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, domain.ErrIdempotencyKeyExists) {
		return nil, apperror.ErrDuplicateRequest()
	}
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
	}

	record, err := json.Marshal(replayRecord{RequestHash: reqHash, Response: respJSON})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal replay record: %w", err))
	}
	return record, nil
}

func (s *WalletServiceImpl) cache(ctx context.Context, key string, record []byte) {
	if key == "" || s.idempCache == nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, record, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

func decodeWalletResult(data []byte) (*ports.WalletResult, error) {
	result := &ports.WalletResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached result: %w", err))
	}
	result.Replayed = true
	return result, nil
}

type transferFingerprint struct {
	Op        string    `json:"op"`
	StudentID uuid.UUID `json:"student_id"`
	Amount    string    `json:"amount"`
}

type chargeFingerprint struct {
	Op     string            `json:"op"`
	CardID string            `json:"card_id"`
	Amount string            `json:"amount"`
	Items  []itemFingerprint `json:"items"`
}

type itemFingerprint struct {
	InventoryID *uuid.UUID `json:"inventory_id"`
	Name        string     `json:"name"`
	Price       string     `json:"price"`
	Quantity    int        `json:"quantity"`
}

func transferHash(studentID uuid.UUID, amount decimal.Decimal) (string, error) {
	return domain.RequestHash(transferFingerprint{
		Op:        opTransfer,
		StudentID: studentID,
		Amount:    money.Format(amount),
	})
}

// chargeHash covers everything that decides what a charge moves. The PIN is
// left out so a retry with a mistyped PIN still replays.
func chargeHash(cardID string, amount decimal.Decimal, items []domain.ChargeItem) (string, error) {
	fp := chargeFingerprint{
		Op:     opCharge,
		CardID: strings.TrimSpace(cardID),
		Amount: money.Format(amount),
		Items:  make([]itemFingerprint, len(items)),
	}
	for i, it := range items {
		fp.Items[i] = itemFingerprint{
			InventoryID: it.InventoryID,
			Name:        it.Name,
			Price:       money.Format(money.Round(it.Price)),
			Quantity:    it.Qty(),
		}
	}
	return domain.RequestHash(fp)
}

func amountError(err error) *apperror.AppError {
	if errors.Is(err, money.ErrTooLarge) {
		return apperror.ErrAmountTooLarge()
	}
	return apperror.ErrInvalidAmount()
}

func topUpDescription(method ports.PaymentMethod, d ports.MethodDetails) (string, error) {
	switch method {
	case ports.PaymentMethodMobileMoney:
		if d.PhoneNumber == "" || d.Provider == "" || d.Pin == "" {
			return "", apperror.Validation("Missing Mobile Money details (Provider, Phone, PIN)")
		}
		return fmt.Sprintf("Mobile Money Top-up (%s - %s)", d.Provider, d.PhoneNumber), nil
	case ports.PaymentMethodBankTransfer:
		if d.BankName == "" || d.AccountNumber == "" || d.Pin == "" {
			return "", apperror.Validation("Missing Bank details (Bank Name, Account No, PIN)")
		}
		return fmt.Sprintf("Bank Transfer Top-up (%s - %s)", d.BankName, d.AccountNumber), nil
	default:
		return "", apperror.ErrInvalidPaymentMethod()
	}
}

func validateChargeItems(items []domain.ChargeItem) error {
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return apperror.Validation("Item name is required")
		}
		if it.Price.IsNegative() {
			return apperror.Validation(fmt.Sprintf("Item %s has a negative price", it.Name))
		}
		if it.Quantity < 0 {
			return apperror.Validation(fmt.Sprintf("Item %s has a negative quantity", it.Name))
		}
	}
	return nil
}

func chargeDescription(items []domain.ChargeItem) string {
	if len(items) == 0 {
		return "Merchant Payment"
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s (%s)", it.Name, money.Format(it.Price))
	}
	return "Payment: " + strings.Join(parts, ", ")
}

// groupLineDetails folds line items by name in first-seen order. The unit
// price comes from the first occurrence.
func groupLineDetails(items []domain.ChargeItem) domain.PaymentDetails {
	if len(items) == 0 {
		return nil
	}
	var details domain.PaymentDetails
	index := make(map[string]int, len(items))
	for _, it := range items {
		qty := it.Qty()
		total := money.Round(it.Price.Mul(decimal.NewFromInt(int64(qty))))
		if i, ok := index[it.Name]; ok {
			details[i].Quantity += qty
			details[i].TotalPrice = details[i].TotalPrice.Add(total)
			continue
		}
		index[it.Name] = len(details)
		details = append(details, domain.LineDetail{
			Name:       it.Name,
			Quantity:   qty,
			UnitPrice:  money.Round(it.Price),
			TotalPrice: total,
		})
	}
	return details
}

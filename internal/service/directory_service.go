package service

import (
	"context"
	"fmt"
	"strings"

	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DirectoryService implements ports.Directory and ports.UserAdminService
// over the users table.
type DirectoryService struct {
	userRepo ports.UserRepository
	hashSvc  ports.HashService
	log      zerolog.Logger
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(userRepo ports.UserRepository, hashSvc ports.HashService, log zerolog.Logger) *DirectoryService {
	return &DirectoryService{
		userRepo: userRepo,
		hashSvc:  hashSvc,
		log:      log,
	}
}

func (s *DirectoryService) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (s *DirectoryService) FindByStudentIDNumber(ctx context.Context, studentIDNumber string) (*domain.User, error) {
	u, err := s.userRepo.GetByStudentIDNumber(ctx, strings.TrimSpace(studentIDNumber))
	if err != nil {
		return nil, fmt.Errorf("find user by student id number: %w", err)
	}
	if u == nil || u.Role != domain.RoleStudent {
		return nil, nil
	}
	return u, nil
}

// FindByCardID resolves the student holding cardID. Cards linked to any
// other role are not chargeable and resolve to nil.
func (s *DirectoryService) FindByCardID(ctx context.Context, cardID string) (*domain.User, error) {
	u, err := s.userRepo.GetByCardID(ctx, strings.TrimSpace(cardID))
	if err != nil {
		return nil, fmt.Errorf("find user by card id: %w", err)
	}
	if u == nil || u.Role != domain.RoleStudent {
		return nil, nil
	}
	return u, nil
}

// VerifyPin checks candidate against the user's card PIN hash. A user
// without a PIN never verifies.
func (s *DirectoryService) VerifyPin(ctx context.Context, userID uuid.UUID, candidate string) (bool, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("find user for pin check: %w", err)
	}
	if u == nil || !u.HasPin() {
		return false, nil
	}
	ok, err := s.hashSvc.Verify(candidate, *u.PinHash)
	if err != nil {
		return false, fmt.Errorf("verify pin: %w", err)
	}
	return ok, nil
}

// ResetPin replaces a user's card PIN.
func (s *DirectoryService) ResetPin(ctx context.Context, userID uuid.UUID, newPin string) error {
	if strings.TrimSpace(newPin) == "" {
		return apperror.Validation("New PIN is required")
	}

	if _, err := s.mustFind(ctx, userID); err != nil {
		return err
	}

	hash, err := s.hashSvc.Hash(newPin)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash pin: %w", err))
	}
	if err := s.userRepo.UpdatePinHash(ctx, userID, hash); err != nil {
		return apperror.InternalError(fmt.Errorf("update pin: %w", err))
	}

	s.log.Info().Str("user_id", userID.String()).Msg("card pin reset")
	return nil
}

// SyncCard links an NFC card id to a user. A card already linked to a
// different user is rejected.
func (s *DirectoryService) SyncCard(ctx context.Context, userID uuid.UUID, cardID string) error {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return apperror.Validation("NFC card id is required")
	}

	if _, err := s.mustFind(ctx, userID); err != nil {
		return err
	}

	holder, err := s.userRepo.GetByCardID(ctx, cardID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("check card holder: %w", err))
	}
	if holder != nil && holder.ID != userID {
		return apperror.Validation("NFC card is already assigned")
	}

	if err := s.userRepo.UpdateCardID(ctx, userID, cardID); err != nil {
		return apperror.InternalError(fmt.Errorf("update card id: %w", err))
	}

	s.log.Info().Str("user_id", userID.String()).Str("card_id", cardID).Msg("nfc card synced")
	return nil
}

// ListUsers pages through the directory, newest first.
func (s *DirectoryService) ListUsers(ctx context.Context, params domain.UserListParams) ([]domain.User, int64, error) {
	params.Search = strings.TrimSpace(params.Search)
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	users, total, err := s.userRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list users: %w", err))
	}
	return users, total, nil
}

func (s *DirectoryService) mustFind(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if u == nil {
		return nil, apperror.ErrNotFound("User")
	}
	return u, nil
}

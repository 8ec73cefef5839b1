package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	hashSvc    ports.HashService
	tokenSvc   ports.TokenService
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		hashSvc:    hashSvc,
		tokenSvc:   tokenSvc,
		transactor: transactor,
		log:        log,
	}
}

// Register creates a user and its zero-balance wallet in one transaction.
// Only self-service roles may register; other accounts are provisioned by
// directory managers through CreateUser.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.User, error) {
	req, err := normalizeRegistration(req)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(domain.SelfServiceRoles, req.Role) {
		return nil, apperror.Validation("Role cannot be self-assigned")
	}

	user, err := s.provision(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("role", string(user.Role)).
		Msg("user registered")

	return user, nil
}

// CreateUser provisions an account for a directory manager. The creator's
// role bounds which roles it may hand out.
func (s *AuthServiceImpl) CreateUser(ctx context.Context, creator domain.Role, req ports.RegisterRequest) (*domain.User, error) {
	req, err := normalizeRegistration(req)
	if err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, apperror.Validation("Invalid role")
	}
	if !creator.CanProvision(req.Role) {
		return nil, apperror.ErrForbidden()
	}

	user, err := s.provision(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("role", string(user.Role)).
		Str("created_by_role", string(creator)).
		Msg("user provisioned")

	return user, nil
}

// provision checks uniqueness and the parent link, hashes the secrets and
// creates the user with its wallet.
func (s *AuthServiceImpl) provision(ctx context.Context, req ports.RegisterRequest) (*domain.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	if err := s.checkUniqueIdentifiers(ctx, req); err != nil {
		return nil, err
	}

	if req.ParentID != nil {
		parent, err := s.userRepo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("find parent: %w", err))
		}
		if parent == nil || parent.Role != domain.RoleParent {
			return nil, apperror.ErrNotFound("Parent")
		}
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	var pinHash *string
	if req.CardPin != nil && *req.CardPin != "" {
		h, err := s.hashSvc.Hash(*req.CardPin)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("hash pin: %w", err))
		}
		pinHash = &h
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:              uuid.New(),
		Name:            req.Name,
		Email:           req.Email,
		PasswordHash:    passwordHash,
		Role:            req.Role,
		CardID:          req.CardID,
		StudentIDNumber: req.StudentIDNumber,
		PinHash:         pinHash,
		ParentID:        req.ParentID,
		StudentClass:    req.StudentClass,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.createWithWallet(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeRegistration(req ports.RegisterRequest) (ports.RegisterRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.StudentIDNumber = trimOptional(req.StudentIDNumber)
	req.CardID = trimOptional(req.CardID)

	if req.Name == "" || req.Email == "" || req.Password == "" {
		return req, apperror.Validation("Name, email and password are required")
	}
	return req, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.Role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return &ports.LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// EnsureSuperAdmin creates the default super admin when no account uses the
// email yet. It reports whether an account was created.
func (s *AuthServiceImpl) EnsureSuperAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return false, fmt.Errorf("super admin email and password are required")
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check super admin: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	passwordHash, err := s.hashSvc.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash super admin password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         domain.RoleSuperAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.createWithWallet(ctx, user); err != nil {
		return false, err
	}

	s.log.Info().Str("email", email).Msg("default super admin created")
	return true, nil
}

func (s *AuthServiceImpl) checkUniqueIdentifiers(ctx context.Context, req ports.RegisterRequest) error {
	if req.CardID != nil {
		u, err := s.userRepo.GetByCardID(ctx, *req.CardID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("check card id: %w", err))
		}
		if u != nil {
			return apperror.Validation("NFC card is already assigned")
		}
	}
	if req.StudentIDNumber != nil {
		u, err := s.userRepo.GetByStudentIDNumber(ctx, *req.StudentIDNumber)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("check student id number: %w", err))
		}
		if u != nil {
			return apperror.Validation("Student ID number is already registered")
		}
	}
	return nil
}

func (s *AuthServiceImpl) createWithWallet(ctx context.Context, user *domain.User) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		return apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	wallet := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    user.ID,
		Balance:   decimal.Zero,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.CreatedAt,
	}
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

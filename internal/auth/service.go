// StudyForge | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/studyforge/backend/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
	ErrAlreadyUpgraded    = errors.New("account already upgraded")
)

// AccountInfo is the auth-facing projection of an account. Email and
// PasswordHash are empty for guest accounts.
type AccountInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Tier         string
	TokenVersion int
}

type AccountProvider interface {
	GetByEmail(ctx context.Context, email string) (*AccountInfo, error)
	GetByID(ctx context.Context, id string) (*AccountInfo, error)
	CreateGuest(ctx context.Context) (*AccountInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, name string,
	) (*AccountInfo, error)
	Upgrade(
		ctx context.Context,
		id, email, passwordHash, name string,
	) (*AccountInfo, error)
	IncrementTokenVersion(ctx context.Context, accountID string) error
	UpdatePassword(ctx context.Context, accountID, passwordHash string) error
}

type Service struct {
	repo         Repository
	jwt          *JWTManager
	accounts     AccountProvider
	redis        *redis.Client
	blacklistTTL time.Duration
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	accounts AccountProvider,
	redisClient *redis.Client,
) *Service {
	return &Service{
		repo:         repo,
		jwt:          jwt,
		accounts:     accounts,
		redis:        redisClient,
		blacklistTTL: 15 * time.Minute,
	}
}

// StartGuestSession provisions an anonymous guest account and issues
// tokens for it. The tier claim in the access token is the only place
// the quota layer ever reads a tier from.
func (s *Service) StartGuestSession(
	ctx context.Context,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	account, err := s.accounts.CreateGuest(ctx)
	if err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}

	return s.createAuthResponse(ctx, account, userAgent, ipAddress, "", nil)
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	// Guests carry no credentials and can only resume via refresh token.
	if account.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&account.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.accounts.UpdatePassword(ctx, account.ID, newHash)
	}

	return s.createAuthResponse(ctx, account, userAgent, ipAddress, "", nil)
}

// Register creates a full account. When callerID names an existing
// guest, that guest is upgraded in place instead: same account ID, so
// everything the guest created comes along, and prior usage counts
// stop mattering the moment the tier flips.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	callerID, userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var account *AccountInfo
	if callerID != "" {
		account, err = s.accounts.Upgrade(
			ctx,
			callerID,
			req.Email,
			passwordHash,
			req.Name,
		)
	} else {
		account, err = s.accounts.Create(ctx, req.Email, passwordHash, req.Name)
	}
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	// Upgrading invalidates guest-tier access tokens still in flight.
	if callerID != "" {
		if verErr := s.accounts.IncrementTokenVersion(ctx, account.ID); verErr == nil {
			account.TokenVersion++
		}
	}

	return s.createAuthResponse(ctx, account, userAgent, ipAddress, "", nil)
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if storedToken.IsUsed {
		//nolint:errcheck // security revocation continues regardless
		_ = s.repo.RevokeByFamilyID(ctx, storedToken.FamilyID)
		return nil, ErrTokenReuse
	}

	if !storedToken.IsValid() {
		if storedToken.IsRevoked() {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	account, err := s.accounts.GetByID(ctx, storedToken.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return s.createAuthResponse(
		ctx,
		account,
		userAgent,
		ipAddress,
		storedToken.FamilyID,
		&storedToken.ID,
	)
}

func (s *Service) Logout(
	ctx context.Context,
	refreshToken, accountID string,
) error {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if storedToken.AccountID != accountID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, storedToken.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *Service) LogoutAll(ctx context.Context, accountID string) error {
	if err := s.repo.RevokeAllForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.accounts.IncrementTokenVersion(ctx, accountID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	key := "blacklist:" + jti
	ttl := time.Until(expiresAt)

	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	key := "blacklist:" + jti

	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	accountID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	accountID, sessionID string,
) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if token.AccountID != accountID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	accountID, currentPassword, newPassword string,
) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if account.PasswordHash == "" {
		return ErrInvalidCredentials
	}

	valid, _, err := core.VerifyPasswordWithRehash(
		currentPassword,
		account.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, accountID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.LogoutAll(ctx, accountID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

func (s *Service) ValidateTokenVersion(
	ctx context.Context,
	accountID string,
	tokenVersion int,
) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if tokenVersion < account.TokenVersion {
		return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
	}

	return nil
}

func (s *Service) GetCurrentAccount(
	ctx context.Context,
	accountID string,
) (*AccountResponse, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &AccountResponse{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Name,
		Role:  account.Role,
		Tier:  account.Tier,
	}, nil
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	account *AccountInfo,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	accessToken, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       account.ID,
		Role:         account.Role,
		Tier:         account.Tier,
		TokenVersion: account.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(account.ID, familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	newTokenID := uuid.New().String()

	refreshTokenEntity := &RefreshToken{
		ID:        newTokenID,
		AccountID: account.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.repo.Create(ctx, refreshTokenEntity); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if oldTokenID != nil {
		//nolint:errcheck // best-effort token chain tracking
		_ = s.repo.MarkAsUsed(ctx, *oldTokenID, newTokenID)
	}

	return &AuthResponse{
		Account: AccountResponse{
			ID:        account.ID,
			Email:     account.Email,
			Name:      account.Name,
			Role:      account.Role,
			Tier:      account.Tier,
			CreatedAt: time.Now(),
		},
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(15 * time.Minute / time.Second),
			ExpiresAt:    time.Now().Add(15 * time.Minute),
		},
	}, nil
}

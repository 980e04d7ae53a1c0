package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/app/services"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	"github.com/amirphl/leaddesk/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthFlow handles account registration, sessions and the admin user listing
type AuthFlow interface {
	Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.UserDTO, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Logout(ctx context.Context, userID uint, accessToken string, metadata *ClientMetadata) error
	Me(ctx context.Context, userID uint) (*dto.UserDTO, error)
	AdminListUsers(ctx context.Context, req *dto.AdminUsersRequest) (*dto.AdminUsersResponse, error)
}

// AuthFlowImpl implements the auth business flow
type AuthFlowImpl struct {
	userRepo     repository.UserRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	db           *gorm.DB
	hashCost     int
}

// NewAuthFlow creates a new auth flow instance
func NewAuthFlow(
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	db *gorm.DB,
	hashCost int,
) AuthFlow {
	if hashCost < bcrypt.MinCost {
		hashCost = bcrypt.DefaultCost
	}
	return &AuthFlowImpl{
		userRepo:     userRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		db:           db,
		hashCost:     hashCost,
	}
}

// Register creates an account after checking that username and email are free
func (af *AuthFlowImpl) Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.UserDTO, error) {
	if req == nil {
		return nil, NewBusinessError("REGISTER_VALIDATION_FAILED", "Request is required", nil)
	}

	userType := strings.ToLower(strings.TrimSpace(req.UserType))
	if userType == "" {
		userType = models.UserTypeAgent
	}
	if userType != models.UserTypeAdmin && userType != models.UserTypeTL && userType != models.UserTypeAgent {
		return nil, NewBusinessError("REGISTER_VALIDATION_FAILED", "Registration validation failed", ErrInvalidUserType)
	}

	user, err := af.WithRegisterTransaction(ctx, func(ctx context.Context) (*models.User, error) {
		username := strings.TrimSpace(req.Username)
		email := strings.ToLower(strings.TrimSpace(req.Email))

		existing, err := af.userRepo.ByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrUsernameTaken
		}

		existing, err = af.userRepo.ByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrEmailTaken
		}

		tlName := trimPtr(req.TLName)
		if tlName != nil {
			tl, err := af.userRepo.ByUsername(ctx, *tlName)
			if err != nil {
				return nil, err
			}
			if tl == nil || !tl.IsTL() {
				return nil, ErrTeamLeadNotFound
			}
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), af.hashCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}

		user := &models.User{
			FullName:  strings.TrimSpace(req.FullName),
			Username:  username,
			UserEmail: email,
			Password:  string(hashed),
			UserType:  userType,
			TLName:    tlName,
		}
		if err := af.userRepo.Save(ctx, user); err != nil {
			if repository.IsDuplicateKey(err) {
				return nil, ErrUsernameTaken
			}
			return nil, err
		}
		return user, nil
	})
	if err != nil {
		return nil, NewBusinessError("REGISTER_FAILED", "Registration failed", err)
	}

	msg := fmt.Sprintf("User registered: %s (%s)", user.Username, user.UserType)
	recordAudit(ctx, af.auditRepo, &user.ID, models.AuditActionRegistered, msg, true, nil, metadata)

	out := ToUserDTO(*user)
	return &out, nil
}

// Login authenticates by username, or by email when the identifier contains '@'
func (af *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	if req == nil {
		return nil, NewBusinessError("LOGIN_VALIDATION_FAILED", "Request is required", nil)
	}

	identifier := strings.TrimSpace(req.Username)
	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = af.userRepo.ByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = af.userRepo.ByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		var userID *uint
		if user != nil {
			userID = &user.ID
		}
		errMsg := fmt.Sprintf("Login failed for %s", identifier)
		recordAudit(ctx, af.auditRepo, userID, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("LOGIN_FAILED", "Invalid username or password", ErrInvalidCredentials)
	}

	accessToken, refreshToken, err := af.tokenService.GenerateTokens(user.ID, user.Username, user.UserType)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	if err := af.userRepo.UpdateLoginStatus(ctx, user.ID, 1); err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}
	user.LoginStatus = 1

	msg := fmt.Sprintf("User logged in successfully: %d", user.ID)
	recordAudit(ctx, af.auditRepo, &user.ID, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    utils.AccessTokenTTLSeconds,
		User:         ToUserDTO(*user),
	}, nil
}

// Refresh rotates a refresh token into a new token pair. The presented refresh token is revoked.
func (af *AuthFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	if req == nil || strings.TrimSpace(req.RefreshToken) == "" {
		return nil, NewBusinessError("REFRESH_VALIDATION_FAILED", "Refresh token is required", ErrInvalidRefreshToken)
	}

	claims, err := af.tokenService.GetTokenClaims(req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Invalid refresh token", fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err))
	}

	user, err := af.userRepo.ByID(ctx, claims.UserID)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Failed to refresh token", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}

	accessToken, refreshToken, err := af.tokenService.RefreshToken(req.RefreshToken)
	if err != nil {
		errMsg := err.Error()
		recordAudit(ctx, af.auditRepo, &user.ID, models.AuditActionTokenRefreshFailed, "Token refresh rejected", false, &errMsg, metadata)
		return nil, NewBusinessError("REFRESH_FAILED", "Invalid refresh token", fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err))
	}

	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    utils.AccessTokenTTLSeconds,
		User:         ToUserDTO(*user),
	}, nil
}

// Logout marks the user offline and revokes the presented access token
func (af *AuthFlowImpl) Logout(ctx context.Context, userID uint, accessToken string, metadata *ClientMetadata) error {
	if err := af.userRepo.UpdateLoginStatus(ctx, userID, 0); err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}

	if accessToken != "" {
		if err := af.tokenService.RevokeToken(accessToken); err != nil {
			return NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
		}
	}

	recordAudit(ctx, af.auditRepo, &userID, models.AuditActionLogout, "User logged out", true, nil, metadata)
	return nil
}

func (af *AuthFlowImpl) Me(ctx context.Context, userID uint) (*dto.UserDTO, error) {
	user, err := af.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("USER_FETCH_FAILED", "Failed to fetch user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	out := ToUserDTO(*user)
	return &out, nil
}

// AdminListUsers pages through accounts matching the search and creation-date range.
// Stats count every account matching the same filter regardless of page.
func (af *AuthFlowImpl) AdminListUsers(ctx context.Context, req *dto.AdminUsersRequest) (*dto.AdminUsersResponse, error) {
	if req == nil {
		req = &dto.AdminUsersRequest{}
	}

	rng, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, NewBusinessError("USERS_FILTER_INVALID", "Invalid date range", err)
	}

	filter := models.UserFilter{
		Search:   trimPtr(req.Search),
		UserType: trimPtr(strings.ToLower(req.UserType)),
	}
	if rng != nil {
		filter.CreatedAfter = &rng.Start
		filter.CreatedBefore = utils.ToPtr(rng.End.AddDate(0, 0, 1))
	}

	params := dto.ComputeOffset(req.Page, req.Limit)

	total, err := af.userRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("USERS_COUNT_FAILED", "Failed to count users", err)
	}

	onlineFilter := filter
	onlineFilter.LoginStatus = utils.ToPtr(1)
	online, err := af.userRepo.Count(ctx, onlineFilter)
	if err != nil {
		return nil, NewBusinessError("USERS_COUNT_FAILED", "Failed to count users", err)
	}

	users, err := af.userRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", params.Limit, params.Offset)
	if err != nil {
		return nil, NewBusinessError("USERS_QUERY_FAILED", "Failed to list users", err)
	}

	env := dto.BuildPageEnvelope(ToUserDTOs(users), total, params.Page, params.Limit)
	return &dto.AdminUsersResponse{
		Data:       env.Data,
		Pagination: env.Pagination,
		Stats: dto.UserStats{
			Total:   total,
			Online:  online,
			Offline: total - online,
		},
	}, nil
}

func (af *AuthFlowImpl) WithRegisterTransaction(ctx context.Context, fn func(context.Context) (*models.User, error)) (*models.User, error) {
	var result *models.User
	var fnErr error

	err := repository.WithTransaction(ctx, af.db, func(ctx context.Context) error {
		result, fnErr = fn(ctx)
		return fnErr
	})

	if err != nil {
		return nil, err
	}
	return result, fnErr
}

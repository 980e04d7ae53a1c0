package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/app/services"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	testingutil "github.com/amirphl/leaddesk/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const authTestSecret = "auth-flow-test-secret-key-32-characters"

func newTestAuthFlow(t *testing.T, testDB *testingutil.TestDB) (AuthFlow, services.TokenService, repository.UserRepository) {
	t.Helper()
	tokens, err := services.NewTokenService(15*time.Minute, time.Hour, "leaddesk", "leaddesk-api", false, "", "", authTestSecret, services.NewMemoryRevocationStore())
	require.NoError(t, err)
	userRepo := repository.NewUserRepository(testDB.DB)
	flow := NewAuthFlow(userRepo, repository.NewAuditLogRepository(testDB.DB), tokens, testDB.DB, bcrypt.MinCost)
	return flow, tokens, userRepo
}

func TestAuthFlowRegister(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow, _, userRepo := newTestAuthFlow(t, testDB)
		ctx := context.Background()

		tl, err := flow.Register(ctx, &dto.RegisterRequest{
			FullName: "Bo Kim", Username: "bo", Email: "Bo@Example.com", Password: "Password123", UserType: "TL",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, models.UserTypeTL, tl.UserType)
		assert.Equal(t, "bo@example.com", tl.Email)
		assert.False(t, tl.Online)

		t.Run("DefaultsToAgentUnderTL", func(t *testing.T) {
			user, err := flow.Register(ctx, &dto.RegisterRequest{
				FullName: "Ann Lee", Username: "ann", Email: "ann@example.com", Password: "Password123", TLName: " bo ",
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, models.UserTypeAgent, user.UserType)
			require.NotNil(t, user.TLName)
			assert.Equal(t, "bo", *user.TLName)

			stored, err := userRepo.ByUsername(ctx, "ann")
			require.NoError(t, err)
			assert.NotEqual(t, "Password123", stored.Password)
		})

		t.Run("UsernameTaken", func(t *testing.T) {
			_, err := flow.Register(ctx, &dto.RegisterRequest{
				FullName: "Other", Username: "bo", Email: "other@example.com", Password: "Password123",
			}, nil)
			assert.True(t, IsUsernameTaken(err))
		})

		t.Run("EmailTaken", func(t *testing.T) {
			_, err := flow.Register(ctx, &dto.RegisterRequest{
				FullName: "Other", Username: "other", Email: "BO@example.com", Password: "Password123",
			}, nil)
			assert.True(t, IsEmailTaken(err))
		})

		t.Run("UnknownTeamLead", func(t *testing.T) {
			_, err := flow.Register(ctx, &dto.RegisterRequest{
				FullName: "Other", Username: "other", Email: "other@example.com", Password: "Password123", TLName: "ann",
			}, nil)
			assert.True(t, IsTeamLeadNotFound(err))
		})

		t.Run("InvalidUserType", func(t *testing.T) {
			_, err := flow.Register(ctx, &dto.RegisterRequest{
				FullName: "Other", Username: "other", Email: "other@example.com", Password: "Password123", UserType: "owner",
			}, nil)
			assert.True(t, IsInvalidUserType(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAuthFlowSession(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow, tokens, userRepo := newTestAuthFlow(t, testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := context.Background()

		user, err := fixtures.CreateTestUser("jane", models.UserTypeAgent, "")
		require.NoError(t, err)

		t.Run("WrongPassword", func(t *testing.T) {
			_, err := flow.Login(ctx, &dto.LoginRequest{Username: "jane", Password: "nope"}, nil)
			assert.True(t, IsInvalidCredentials(err))

			_, err = flow.Login(ctx, &dto.LoginRequest{Username: "ghost", Password: testingutil.TestPassword}, nil)
			assert.True(t, IsInvalidCredentials(err))
		})

		var session *dto.LoginResponse
		t.Run("LoginByEmail", func(t *testing.T) {
			session, err = flow.Login(ctx, &dto.LoginRequest{Username: user.UserEmail, Password: testingutil.TestPassword}, nil)
			require.NoError(t, err)
			assert.Equal(t, "Bearer", session.TokenType)
			assert.True(t, session.User.Online)

			claims, err := tokens.ValidateToken(session.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, user.ID, claims.UserID)
			assert.Equal(t, models.UserTypeAgent, claims.UserType)
		})
		require.NotNil(t, session)

		t.Run("RefreshRotates", func(t *testing.T) {
			rotated, err := flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: session.RefreshToken}, nil)
			require.NoError(t, err)
			assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

			_, err = flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: session.RefreshToken}, nil)
			assert.True(t, IsInvalidRefreshToken(err))

			_, err = flow.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: session.AccessToken}, nil)
			assert.True(t, IsInvalidRefreshToken(err))
		})

		t.Run("LogoutRevokesAccessToken", func(t *testing.T) {
			require.NoError(t, flow.Logout(ctx, user.ID, session.AccessToken, nil))
			assert.True(t, tokens.IsTokenRevoked(session.AccessToken))

			me, err := flow.Me(ctx, user.ID)
			require.NoError(t, err)
			assert.False(t, me.Online)
		})

		t.Run("MeUnknownUser", func(t *testing.T) {
			_, err := flow.Me(ctx, 9999)
			assert.True(t, IsUserNotFound(err))
		})

		t.Run("AdminListUsers", func(t *testing.T) {
			_, err := fixtures.CreateTestUser("kim", models.UserTypeTL, "")
			require.NoError(t, err)
			require.NoError(t, userRepo.UpdateLoginStatus(ctx, user.ID, 1))

			res, err := flow.AdminListUsers(ctx, &dto.AdminUsersRequest{Page: 1, Limit: 1})
			require.NoError(t, err)
			assert.Len(t, res.Data, 1)
			assert.Equal(t, int64(2), res.Stats.Total)
			assert.Equal(t, int64(1), res.Stats.Online)
			assert.Equal(t, int64(1), res.Stats.Offline)
			assert.True(t, res.Pagination.HasNextPage)

			res, err = flow.AdminListUsers(ctx, &dto.AdminUsersRequest{UserType: "TL"})
			require.NoError(t, err)
			require.Len(t, res.Data, 1)
			assert.Equal(t, "kim", res.Data[0].Username)
		})

		return nil
	})
	require.NoError(t, err)
}

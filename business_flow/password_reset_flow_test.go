package businessflow

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/repository"
	testingutil "github.com/amirphl/leaddesk/testing"
	"github.com/amirphl/leaddesk/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type sentEmail struct {
	to, subject, body string
}

type recordingNotifier struct {
	sent []sentEmail
}

func (n *recordingNotifier) SendEmail(email, subject, message string) error {
	n.sent = append(n.sent, sentEmail{to: email, subject: subject, body: message})
	return nil
}

// tokenFromLink pulls the token off the last path segment of the mailed link
func tokenFromLink(t *testing.T, body string) string {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(body), "\n")
	link := lines[len(lines)-1]
	i := strings.LastIndex(link, "/")
	require.GreaterOrEqual(t, i, 0)
	return link[i+1:]
}

// consumedAfterLookup hands out the token and then deletes it, as a concurrent reset
// finishing between the lookup and the transaction would
type consumedAfterLookup struct {
	repository.PasswordResetTokenRepository
}

func (r *consumedAfterLookup) ByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	record, err := r.PasswordResetTokenRepository.ByToken(ctx, token)
	if err != nil || record == nil {
		return record, err
	}
	if err := r.PasswordResetTokenRepository.DeleteByID(ctx, record.ID); err != nil {
		return nil, err
	}
	return record, nil
}

func TestPasswordResetFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		userRepo := repository.NewUserRepository(testDB.DB)
		tokenRepo := repository.NewPasswordResetTokenRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := context.Background()

		user, err := fixtures.CreateTestUser("jane", models.UserTypeAgent, "")
		require.NoError(t, err)

		notifier := &recordingNotifier{}
		flow := NewPasswordResetFlow(userRepo, tokenRepo, auditRepo, notifier, testDB.DB, "https://desk.example.com/reset/", time.Hour)

		t.Run("UnknownEmailLooksTheSame", func(t *testing.T) {
			resp, err := flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: "nobody@example.com"}, nil)
			require.NoError(t, err)
			assert.Equal(t, forgotPasswordMessage, resp.Message)
			assert.Empty(t, notifier.sent)
		})

		t.Run("ResetWithMailedToken", func(t *testing.T) {
			resp, err := flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: strings.ToUpper(user.UserEmail)}, nil)
			require.NoError(t, err)
			assert.Equal(t, forgotPasswordMessage, resp.Message)
			require.Len(t, notifier.sent, 1)
			assert.Equal(t, user.UserEmail, notifier.sent[0].to)
			assert.Contains(t, notifier.sent[0].body, "https://desk.example.com/reset/")

			token := tokenFromLink(t, notifier.sent[0].body)
			assert.Len(t, token, 64)

			_, err = flow.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: token, NewPassword: "NewSecret99", ConfirmPassword: "Different99"}, nil)
			assert.True(t, IsPasswordMismatch(err))

			res, err := flow.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: token, NewPassword: "NewSecret99", ConfirmPassword: "NewSecret99"}, nil)
			require.NoError(t, err)
			assert.False(t, res.PasswordChangedAt.IsZero())

			stored, err := userRepo.ByID(ctx, user.ID)
			require.NoError(t, err)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("NewSecret99")))

			// The token is single use
			_, err = flow.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: token, NewPassword: "Another999", ConfirmPassword: "Another999"}, nil)
			assert.True(t, IsResetTokenInvalid(err))
		})

		t.Run("NewRequestReplacesOldToken", func(t *testing.T) {
			notifier.sent = nil
			_, err := flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: user.UserEmail}, nil)
			require.NoError(t, err)
			_, err = flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: user.UserEmail}, nil)
			require.NoError(t, err)
			require.Len(t, notifier.sent, 2)

			first := tokenFromLink(t, notifier.sent[0].body)
			_, err = flow.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: first, NewPassword: "Another999", ConfirmPassword: "Another999"}, nil)
			assert.True(t, IsResetTokenInvalid(err))

			second := tokenFromLink(t, notifier.sent[1].body)
			_, err = flow.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: second, NewPassword: "Another999", ConfirmPassword: "Another999"}, nil)
			assert.NoError(t, err)
		})

		t.Run("ExpiredTokenIsRemoved", func(t *testing.T) {
			expired := &models.PasswordResetToken{
				UserID:    user.ID,
				Token:     strings.Repeat("ab", 32),
				ExpiresAt: utils.UTCNow().Add(-time.Minute),
				CreatedAt: utils.UTCNow().Add(-time.Hour),
			}
			require.NoError(t, tokenRepo.Upsert(ctx, expired))

			_, err := flow.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: expired.Token, NewPassword: "Another999", ConfirmPassword: "Another999"}, nil)
			assert.True(t, IsResetTokenExpired(err))

			record, err := tokenRepo.ByToken(ctx, expired.Token)
			require.NoError(t, err)
			assert.Nil(t, record)
		})

		t.Run("TokenConsumedConcurrently", func(t *testing.T) {
			before, err := userRepo.ByID(ctx, user.ID)
			require.NoError(t, err)

			token := strings.Repeat("ef", 32)
			require.NoError(t, tokenRepo.Upsert(ctx, &models.PasswordResetToken{
				UserID:    user.ID,
				Token:     token,
				ExpiresAt: utils.UTCNow().Add(time.Hour),
				CreatedAt: utils.UTCNow(),
			}))

			racing := NewPasswordResetFlow(userRepo, &consumedAfterLookup{tokenRepo}, auditRepo, notifier, testDB.DB, "", time.Hour)
			_, err = racing.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: token, NewPassword: "Stolen9999", ConfirmPassword: "Stolen9999"}, nil)
			assert.True(t, IsResetTokenInvalid(err))

			after, err := userRepo.ByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Password, after.Password)
		})

		t.Run("CleanupExpired", func(t *testing.T) {
			other, err := fixtures.CreateTestUser("omar", models.UserTypeAgent, "")
			require.NoError(t, err)
			require.NoError(t, tokenRepo.Upsert(ctx, &models.PasswordResetToken{
				UserID:    other.ID,
				Token:     strings.Repeat("cd", 32),
				ExpiresAt: utils.UTCNow().Add(-time.Second),
				CreatedAt: utils.UTCNow().Add(-time.Hour),
			}))

			removed, err := flow.CleanupExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), removed)
		})

		return nil
	})
	require.NoError(t, err)
}

type failingAuditRepo struct {
	repository.AuditLogRepository
}

func (r *failingAuditRepo) Save(ctx context.Context, entry *models.AuditLog) error {
	return errors.New("audit table unavailable")
}

func TestPasswordResetAuditFailureIsLogged(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		userRepo := repository.NewUserRepository(testDB.DB)
		tokenRepo := repository.NewPasswordResetTokenRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := context.Background()

		user, err := fixtures.CreateTestUser("rita", models.UserTypeAgent, "")
		require.NoError(t, err)

		var buf bytes.Buffer
		log.SetOutput(&buf)
		defer log.SetOutput(os.Stderr)

		flow := NewPasswordResetFlow(userRepo, tokenRepo, &failingAuditRepo{}, &recordingNotifier{}, testDB.DB, "", time.Hour)
		resp, err := flow.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: user.UserEmail}, nil)
		require.NoError(t, err)
		assert.Equal(t, forgotPasswordMessage, resp.Message)
		assert.Contains(t, buf.String(), models.AuditActionPasswordResetRequested)
		assert.Contains(t, buf.String(), "audit table unavailable")
		return nil
	})
	require.NoError(t, err)
}

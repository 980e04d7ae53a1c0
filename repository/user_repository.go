package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/leaddesk/models"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, models.UserFilter](db),
	}
}

// ByUsername retrieves a user by username
func (r *UserRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.User, error) {
	users, err := r.ByFilter(ctx, models.UserFilter{Username: &username}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// ByEmail retrieves a user by email
func (r *UserRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := r.ByFilter(ctx, models.UserFilter{UserEmail: &email}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// ExistingUsernamesOrEmails reports which of the given usernames and which of the given
// emails are already taken, in separate sets
func (r *UserRepositoryImpl) ExistingUsernamesOrEmails(ctx context.Context, usernames, emails []string) (map[string]bool, map[string]bool, error) {
	takenUsernames := make(map[string]bool)
	takenEmails := make(map[string]bool)
	if len(usernames) == 0 && len(emails) == 0 {
		return takenUsernames, takenEmails, nil
	}

	db := r.getDB(ctx)
	query := db.Model(&models.User{}).Select("username, useremail")
	switch {
	case len(usernames) > 0 && len(emails) > 0:
		query = query.Where("username IN ? OR useremail IN ?", usernames, emails)
	case len(usernames) > 0:
		query = query.Where("username IN ?", usernames)
	default:
		query = query.Where("useremail IN ?", emails)
	}

	var rows []models.User
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	for _, u := range rows {
		takenUsernames[u.Username] = true
		takenEmails[u.UserEmail] = true
	}
	return takenUsernames, takenEmails, nil
}

// UsernamesByTL lists the agents reporting to a team lead
func (r *UserRepositoryImpl) UsernamesByTL(ctx context.Context, tlName string) ([]string, error) {
	db := r.getDB(ctx)
	var usernames []string
	err := db.Model(&models.User{}).
		Where("tl_name = ?", tlName).
		Order("username").
		Pluck("username", &usernames).Error
	if err != nil {
		return nil, err
	}
	return usernames, nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepositoryImpl) UpdatePassword(ctx context.Context, userID uint, passwordHash string) error {
	db := r.getDB(ctx)
	err := db.Model(&models.User{}).Where("id = ?", userID).Update("password", passwordHash).Error
	if err != nil {
		return fmt.Errorf("failed to update password for user %d: %w", userID, err)
	}
	return nil
}

// UpdateLoginStatus flips the loginstatus flag
func (r *UserRepositoryImpl) UpdateLoginStatus(ctx context.Context, userID uint, status int) error {
	db := r.getDB(ctx)
	err := db.Model(&models.User{}).Where("id = ?", userID).Update("loginstatus", status).Error
	if err != nil {
		return fmt.Errorf("failed to update login status for user %d: %w", userID, err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *UserRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Username != nil {
		query = query.Where("username = ?", *filter.Username)
	}
	if filter.UserEmail != nil {
		query = query.Where("useremail = ?", *filter.UserEmail)
	}
	if filter.UserType != nil {
		query = query.Where("usertype = ?", *filter.UserType)
	}
	if filter.TLName != nil {
		query = query.Where("tl_name = ?", *filter.TLName)
	}
	if filter.LoginStatus != nil {
		query = query.Where("loginstatus = ?", *filter.LoginStatus)
	}
	if filter.Search != nil && *filter.Search != "" {
		like := "%" + *filter.Search + "%"
		query = query.Where("(fullname LIKE ? OR username LIKE ? OR useremail LIKE ?)", like, like, like)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves users based on filter criteria
func (r *UserRepositoryImpl) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.User{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var users []*models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns number of users matching filter
func (r *UserRepositoryImpl) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.User{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any user matches the filter
func (r *UserRepositoryImpl) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

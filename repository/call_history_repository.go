package repository

import (
	"context"
	"time"

	"github.com/amirphl/leaddesk/models"
	"gorm.io/gorm"
)

// CallHistoryRepositoryImpl implements CallHistoryRepository interface
type CallHistoryRepositoryImpl struct {
	*BaseRepository[models.CallHistory, models.CallHistoryFilter]
}

// NewCallHistoryRepository creates a new call history repository
func NewCallHistoryRepository(db *gorm.DB) CallHistoryRepository {
	return &CallHistoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CallHistory, models.CallHistoryFilter](db),
	}
}

func (r *CallHistoryRepositoryImpl) applyFilter(query *gorm.DB, filter models.CallHistoryFilter) *gorm.DB {
	if filter.LeadID != nil {
		query = query.Where("leadid = ?", *filter.LeadID)
	}
	if filter.CallDoneBy != nil {
		query = query.Where("calldoneby = ?", *filter.CallDoneBy)
	}
	if filter.Completed != nil {
		if *filter.Completed {
			query = query.Where("calldoneat IS NOT NULL")
		} else {
			query = query.Where("calldoneat IS NULL")
		}
	}
	if filter.DoneAfter != nil {
		query = query.Where("calldoneat >= ?", *filter.DoneAfter)
	}
	if filter.DoneBefore != nil {
		query = query.Where("calldoneat < ?", *filter.DoneBefore)
	}
	return query
}

// ByFilter retrieves history rows based on filter criteria
func (r *CallHistoryRepositoryImpl) ByFilter(ctx context.Context, filter models.CallHistoryFilter, orderBy string, limit, offset int) ([]*models.CallHistory, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CallHistory{}), filter)

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

	var rows []*models.CallHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of history rows matching filter
func (r *CallHistoryRepositoryImpl) Count(ctx context.Context, filter models.CallHistoryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CallHistory{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any history row matches the filter
func (r *CallHistoryRepositoryImpl) Exists(ctx context.Context, filter models.CallHistoryFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// DailyCompletionByTL counts completed calls in [from, to) per day, team lead and agent.
// Agents are matched by username and team leads through the agent's tl_name, so calls by
// renamed or removed accounts drop out of the report.
func (r *CallHistoryRepositoryImpl) DailyCompletionByTL(ctx context.Context, from, to time.Time) ([]models.DailyCompletionRow, error) {
	db := r.getDB(ctx)
	day := dayExpr(db, "h.calldoneat")

	var rows []models.DailyCompletionRow
	err := db.Table("task_assign_history AS h").
		Select(day+" AS call_day, tl.username AS tl_username, tl.fullname AS tl_fullname, "+
			"u.username AS username, u.fullname AS fullname, COUNT(*) AS completed").
		Joins("JOIN tblusers AS u ON h.calldoneby = u.username").
		Joins("JOIN tblusers AS tl ON u.tl_name = tl.username AND tl.usertype = ?", models.UserTypeTL).
		Where("h.calldoneat IS NOT NULL").
		Where("h.calldoneat >= ? AND h.calldoneat < ?", from.UTC(), to.UTC()).
		Group(day + ", tl.username, tl.fullname, u.username, u.fullname").
		Order("call_day DESC, tl.username, u.username").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

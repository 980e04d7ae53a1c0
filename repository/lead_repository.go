package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/leaddesk/models"
	"gorm.io/gorm"
)

const leadTable = "tblmaster"

// LeadRepositoryImpl implements LeadRepository interface
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead, models.LeadFilter]
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead, models.LeadFilter](db),
	}
}

func leadCol(name string) string {
	return leadTable + "." + name
}

// applyFilter applies filter criteria to a GORM query. Columns are qualified so the
// same predicates work on the joined listing query.
func (r *LeadRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where(leadCol("id")+" = ?", *filter.ID)
	}
	if filter.CallBy != nil && *filter.CallBy != "" {
		query = query.Where(leadCol("callby")+" = ?", *filter.CallBy)
	}
	if len(filter.CallByIn) > 0 {
		query = query.Where(leadCol("callby")+" IN ?", filter.CallByIn)
	}
	if filter.AssignTL != nil && *filter.AssignTL != "" {
		query = query.Where(leadCol("assign_tl")+" = ?", *filter.AssignTL)
	}

	switch filter.Status.Mode {
	case models.StatusPending:
		query = query.Where(leadCol("callstatus")+" = ?", "")
	case models.StatusExact:
		query = query.Where(leadCol("callstatus")+" = ?", filter.Status.Value)
	}

	if filter.ProductName != nil {
		if p := strings.TrimSpace(*filter.ProductName); p != "" && !strings.EqualFold(p, "all") {
			query = query.Where(leadCol("productname")+" = ?", p)
		}
	}
	if filter.UnitType != nil && *filter.UnitType != "" {
		query = query.Where(leadCol("unittype")+" = ?", *filter.UnitType)
	}
	if filter.Budget != nil && *filter.Budget != "" {
		query = query.Where(leadCol("budget")+" = ?", *filter.Budget)
	}
	if filter.ContactNumber != nil && *filter.ContactNumber != "" {
		query = query.Where(leadCol("contactnumber")+" = ?", *filter.ContactNumber)
	}
	if filter.ContactSubstring != nil && *filter.ContactSubstring != "" {
		query = query.Where(leadCol("contactnumber")+" LIKE ?", "%"+*filter.ContactSubstring+"%")
	}
	if filter.NameSubstring != nil && *filter.NameSubstring != "" {
		like := "%" + *filter.NameSubstring + "%"
		query = query.Where("("+leadCol("firstname")+" LIKE ? OR "+leadCol("lastname")+" LIKE ?)", like, like)
	}
	query = applyDayRange(query, leadCol("createdat"), filter.CreatedBetween)
	query = applyDayRange(query, leadCol("postingdate"), filter.PostedBetween)
	query = applyDayRange(query, leadCol("submiton"), filter.SubmittedBetween)
	return query
}

// applyDayRange turns an inclusive day range into a half-open timestamp range
func applyDayRange(query *gorm.DB, column string, rng *models.DateRange) *gorm.DB {
	if rng == nil {
		return query
	}
	return query.Where(column+" >= ? AND "+column+" < ?", rng.Start.UTC(), rng.End.UTC().AddDate(0, 0, 1))
}

// ByFilter retrieves leads without any join, newest first
func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Lead{}), filter)

	if orderBy == "" {
		orderBy = leadCol("id") + " DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Lead
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListWithLastCall left-joins every lead to the history row with the most recent non-null
// calldoneat for that lead. Ties on calldoneat resolve to the lowest history id.
func (r *LeadRepositoryImpl) ListWithLastCall(ctx context.Context, filter models.LeadFilter, limit, offset int) ([]*models.LeadWithLastCall, error) {
	db := r.getDB(ctx)

	latest := db.Table("task_assign_history").
		Select("leadid, calldoneat, calldoneby, ROW_NUMBER() OVER (PARTITION BY leadid ORDER BY calldoneat DESC, id ASC) AS rn").
		Where("calldoneat IS NOT NULL")

	query := db.Table(leadTable).
		Select(leadTable+".*, th.calldoneat AS last_call_done_at, th.calldoneby AS last_call_done_by").
		Joins("LEFT JOIN (?) AS th ON th.leadid = "+leadCol("id")+" AND th.rn = 1", latest)
	query = r.applyFilter(query, filter).Order(leadCol("id") + " DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.LeadWithLastCall
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of leads matching filter
func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Lead{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any lead matches the filter
func (r *LeadRepositoryImpl) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Update overwrites every mutable column of the lead
func (r *LeadRepositoryImpl) Update(ctx context.Context, lead *models.Lead) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				err = db.Commit().Error
			}
		}()
	}

	err = db.Model(&models.Lead{}).
		Where("id = ?", lead.ID).
		Select("*").
		Omit("id", "createdat").
		Updates(lead).Error
	if err != nil {
		return fmt.Errorf("failed to update lead %d: %w", lead.ID, err)
	}
	return nil
}

// Delete removes a lead; the boolean reports whether a row existed
func (r *LeadRepositoryImpl) Delete(ctx context.Context, id uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Delete(&models.Lead{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete lead %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DistinctCallStatuses lists the non-empty statuses used by an agent
func (r *LeadRepositoryImpl) DistinctCallStatuses(ctx context.Context, callBy string) ([]string, error) {
	return r.distinct(ctx, "callstatus", callBy)
}

// DistinctProducts lists the non-empty product names of an agent's leads
func (r *LeadRepositoryImpl) DistinctProducts(ctx context.Context, callBy string) ([]string, error) {
	return r.distinct(ctx, "productname", callBy)
}

// DistinctUnitTypes lists the non-empty unit types of an agent's leads
func (r *LeadRepositoryImpl) DistinctUnitTypes(ctx context.Context, callBy string) ([]string, error) {
	return r.distinct(ctx, "unittype", callBy)
}

// DistinctBudgets lists the non-empty budgets of an agent's leads
func (r *LeadRepositoryImpl) DistinctBudgets(ctx context.Context, callBy string) ([]string, error) {
	return r.distinct(ctx, "budget", callBy)
}

// distinct plucks the sorted distinct non-empty values of column; an empty callBy spans all agents
func (r *LeadRepositoryImpl) distinct(ctx context.Context, column, callBy string) ([]string, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Lead{}).Where(column+" <> ?", "")
	if callBy != "" {
		query = query.Where("callby = ?", callBy)
	}

	var values []string
	if err := query.Distinct(column).Order(column).Pluck(column, &values).Error; err != nil {
		return nil, fmt.Errorf("failed to list distinct %s: %w", column, err)
	}
	return values, nil
}

// StatusDistribution counts leads per non-empty callstatus
func (r *LeadRepositoryImpl) StatusDistribution(ctx context.Context, filter models.LeadFilter) ([]models.StatusCount, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Lead{}), filter).
		Select(leadCol("callstatus")+" AS callstatus, COUNT(*) AS tcount").
		Where(leadCol("callstatus")+" <> ?", "").
		Group(leadCol("callstatus")).
		Order("tcount DESC")

	var rows []models.StatusCount
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SubmittedByDay counts called leads per submit day, most recent day first
func (r *LeadRepositoryImpl) SubmittedByDay(ctx context.Context, filter models.LeadFilter) ([]models.DayCount, error) {
	db := r.getDB(ctx)
	day := dayExpr(db, leadCol("submiton"))
	query := r.applyFilter(db.Model(&models.Lead{}), filter).
		Select(day+" AS call_day, COUNT(*) AS tcount").
		Where(leadCol("callstatus")+" <> ?", "").
		Where(leadCol("submiton") + " IS NOT NULL").
		Group(day).
		Order("call_day DESC")

	var rows []struct {
		CallDay string `gorm:"column:call_day"`
		TCount  int64  `gorm:"column:tcount"`
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]models.DayCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DayCount{Day: row.CallDay, Count: row.TCount})
	}
	return out, nil
}

// MemberPerformance aggregates total and completed leads for each agent.
// Agents without leads are reported with zero counts.
func (r *LeadRepositoryImpl) MemberPerformance(ctx context.Context, usernames []string, postedBetween *models.DateRange) ([]models.MemberPerformance, error) {
	if len(usernames) == 0 {
		return []models.MemberPerformance{}, nil
	}
	db := r.getDB(ctx)

	on := "m.callby = u.username"
	var args []any
	if postedBetween != nil {
		on += " AND m.postingdate >= ? AND m.postingdate < ?"
		args = append(args, postedBetween.Start.UTC(), postedBetween.End.UTC().AddDate(0, 0, 1))
	}

	var rows []models.MemberPerformance
	err := db.Table("tblusers AS u").
		Select("u.username AS username, COUNT(m.id) AS total_leads, "+
			"COALESCE(SUM(CASE WHEN m.callstatus <> '' THEN 1 ELSE 0 END), 0) AS calls_completed").
		Joins("LEFT JOIN "+leadTable+" AS m ON "+on, args...).
		Where("u.username IN ?", usernames).
		Group("u.username").
		Order("u.username").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

package repository

import (
	"context"
	"errors"

	"talentpay/internal/model"

	"gorm.io/gorm"
)

type TeamFundRepository struct {
	db *gorm.DB
}

func NewTeamFundRepository(db *gorm.DB) *TeamFundRepository {
	return &TeamFundRepository{db: db}
}

// TeamFundTotals 从台账聚合出的团队资金汇总
type TeamFundTotals struct {
	Received    int64
	Distributed int64
}

func (t TeamFundTotals) Held() int64 {
	return t.Received - t.Distributed
}

func (r *TeamFundRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.TeamFundEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

// Totals 实时聚合 RECEIVED / DISTRIBUTED 总额
func (r *TeamFundRepository) Totals(ctx context.Context, tx *gorm.DB, projectID string) (TeamFundTotals, error) {
	if tx == nil {
		tx = r.db
	}
	var totals TeamFundTotals
	err := tx.WithContext(ctx).
		Model(&model.TeamFundEntry{}).
		Select(
			"COALESCE(SUM(CASE WHEN entry_type = ? THEN amount ELSE 0 END), 0) AS received, "+
				"COALESCE(SUM(CASE WHEN entry_type = ? THEN amount ELSE 0 END), 0) AS distributed",
			model.TeamFundEntryReceived, model.TeamFundEntryDistributed,
		).
		Where("project_id = ?", projectID).
		Scan(&totals).Error
	return totals, err
}

// LatestReceived 最近一次团队份额入账，决定当前组长和"持有天数"
func (r *TeamFundRepository) LatestReceived(ctx context.Context, tx *gorm.DB, projectID string) (*model.TeamFundEntry, error) {
	if tx == nil {
		tx = r.db
	}
	var entry model.TeamFundEntry
	err := tx.WithContext(ctx).
		Where("project_id = ? AND entry_type = ?", projectID, model.TeamFundEntryReceived).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *TeamFundRepository) ListByProject(ctx context.Context, projectID string) ([]*model.TeamFundEntry, error) {
	var entries []*model.TeamFundEntry
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// ListFundedProjects 所有收到过团队份额的项目
func (r *TeamFundRepository) ListFundedProjects(ctx context.Context) ([]string, error) {
	var projectIDs []string
	err := r.db.WithContext(ctx).
		Model(&model.TeamFundEntry{}).
		Where("entry_type = ?", model.TeamFundEntryReceived).
		Distinct("project_id").
		Pluck("project_id", &projectIDs).Error
	return projectIDs, err
}

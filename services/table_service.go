package services

import (
	"context"
	"errors"
	"strings"

	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

const EventTableUpdated = "table_updated"

type TableInput struct {
	Name     string `json:"name" binding:"required,max=50"`
	Capacity int    `json:"capacity" binding:"required,min=1,max=50"`
	Area     string `json:"area" binding:"max=50"`
	Active   *bool  `json:"active"`
}

type TableService struct {
	db        *gorm.DB
	publisher Publisher
}

func NewTableService(db *gorm.DB, publisher Publisher) *TableService {
	return &TableService{db: db, publisher: publisher}
}

func (s *TableService) List(ctx context.Context, tenantID string, includeInactive bool) ([]models.RestaurantTable, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	var tables []models.RestaurantTable
	if err := query.Order("name ASC").Find(&tables).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	return tables, nil
}

func (s *TableService) Get(ctx context.Context, tenantID, id string) (*models.RestaurantTable, error) {
	var table models.RestaurantTable
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.CodeNotFound, "table not found")
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &table, nil
}

func (s *TableService) Create(ctx context.Context, tenantID string, in TableInput) (*models.RestaurantTable, error) {
	name := strings.TrimSpace(in.Name)
	if err := s.ensureUniqueName(ctx, tenantID, "", name); err != nil {
		return nil, err
	}

	table := &models.RestaurantTable{
		TenantID: tenantID,
		Name:     name,
		Capacity: in.Capacity,
		Area:     strings.TrimSpace(in.Area),
		Active:   true,
	}
	if err := s.db.WithContext(ctx).Create(table).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	// active has a database default, so false must be written after the insert
	if in.Active != nil && !*in.Active {
		if err := s.db.WithContext(ctx).Model(table).Update("active", false).Error; err != nil {
			return nil, utils.DatabaseError(err)
		}
	}

	s.publish(tenantID, "created", table)
	return table, nil
}

func (s *TableService) Update(ctx context.Context, tenantID, id string, in TableInput) (*models.RestaurantTable, error) {
	table, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := s.ensureUniqueName(ctx, tenantID, id, name); err != nil {
		return nil, err
	}

	table.Name = name
	table.Capacity = in.Capacity
	table.Area = strings.TrimSpace(in.Area)
	if in.Active != nil {
		table.Active = *in.Active
	}
	if err := s.db.WithContext(ctx).Save(table).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}

	s.publish(tenantID, "updated", table)
	return table, nil
}

// Deactivate hides the table from new bookings. Existing bookings are untouched.
func (s *TableService) Deactivate(ctx context.Context, tenantID, id string) (*models.RestaurantTable, error) {
	table, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(table).Update("active", false).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}

	s.publish(tenantID, "deactivated", table)
	return table, nil
}

func (s *TableService) ensureUniqueName(ctx context.Context, tenantID, excludeID, name string) error {
	query := s.db.WithContext(ctx).Model(&models.RestaurantTable{}).
		Where("tenant_id = ? AND LOWER(name) = ?", tenantID, strings.ToLower(name))
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return utils.DatabaseError(err)
	}
	if n > 0 {
		return utils.Errorf(utils.CodeValidation, "a table named %q already exists", name)
	}
	return nil
}

func (s *TableService) publish(tenantID, action string, table *models.RestaurantTable) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(tenantID, EventTableUpdated, map[string]interface{}{
		"action": action,
		"table":  table,
	})
}

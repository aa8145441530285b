package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/dineflow/internal/model"
)

// StaffRepository 后台账号仓储
type StaffRepository interface {
	Create(ctx context.Context, staff *model.Staff) error
	GetByUsername(ctx context.Context, username string) (*model.Staff, error)
}

type staffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) StaffRepository { return &staffRepository{db: db} }

func (r *staffRepository) Create(ctx context.Context, staff *model.Staff) error {
	return r.db.WithContext(ctx).Create(staff).Error
}

func (r *staffRepository) GetByUsername(ctx context.Context, username string) (*model.Staff, error) {
	var staff model.Staff
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&staff).Error
	if err != nil {
		return nil, notFoundOr(err, "staff account not found")
	}
	return &staff, nil
}

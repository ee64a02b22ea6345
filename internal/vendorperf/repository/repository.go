package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 供应商绩效仓库集合
type Repositories struct {
	db *gorm.DB

	Vendor        *VendorRepository
	PurchaseOrder *PurchaseOrderRepository
	Performance   *PerformanceRepository
	Config        *ScorecardConfigRepository
	ESG           *ESGRepository
	Alert         *AlertRepository
	TierLog       *TierChangeLogRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:            db,
		Vendor:        NewVendorRepository(db),
		PurchaseOrder: NewPurchaseOrderRepository(db),
		Performance:   NewPerformanceRepository(db),
		Config:        NewScorecardConfigRepository(db),
		ESG:           NewESGRepository(db),
		Alert:         NewAlertRepository(db),
		TierLog:       NewTierChangeLogRepository(db),
	}
}

// Transaction runs fn inside one database transaction with tx-bound repositories.
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

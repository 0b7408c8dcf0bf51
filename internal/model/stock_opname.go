package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockOpname is one physical-count audit record. It stores a
// denormalized snapshot of the catalog item so the record stays stable
// even if the catalog is later replaced by a fresh import.
//
// Difference is always derived as PhysicalQty - SystemQty; handlers
// recompute it on every create and update and never trust the caller.
type StockOpname struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	InventoryID string    `json:"inventoryId" gorm:"type:uuid;index"`
	KdBrg       *string   `json:"kd_brg" gorm:"type:varchar(100);index"`
	Barcode     *string   `json:"barcode" gorm:"type:varchar(100)"`
	NmBrg       string    `json:"nm_brg" gorm:"type:varchar(255);not null"`
	SystemQty   int       `json:"systemQty" gorm:"default:0"`
	PhysicalQty int       `json:"physicalQty" gorm:"default:0"`
	Difference  int       `json:"difference" gorm:"default:0"`
	Satuan      *string   `json:"satuan" gorm:"type:varchar(50)"`
	HrgBeli     float64   `json:"hrg_beli" gorm:"default:0"`
	RackNo      string    `json:"rackNo" gorm:"type:varchar(100);index"`
	UserName    string    `json:"userName" gorm:"type:varchar(100)"`
	Division    *string   `json:"division" gorm:"type:varchar(100)"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (r *StockOpname) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

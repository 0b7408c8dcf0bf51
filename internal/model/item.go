package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryItem represents a catalog row imported from the warehouse
// master spreadsheet. Field names follow the spreadsheet columns
// (kd_brg = internal code, nm_brg = item name, satuan = unit,
// hrg_beli = purchase price, gol1 = sell price, kode_supl = supplier).
//
// KdBrg is unique when present; Barcode is not, so lookups by barcode
// must tolerate multiple matches and pick the first deterministically.
type InventoryItem struct {
	ID       string  `json:"id" gorm:"type:uuid;primaryKey"`
	KdBrg    *string `json:"kd_brg" gorm:"type:varchar(100);uniqueIndex"`
	Barcode  *string `json:"barcode" gorm:"type:varchar(100);index"`
	NmBrg    string  `json:"nm_brg" gorm:"type:varchar(255);not null"`
	Satuan   *string `json:"satuan" gorm:"type:varchar(50)"`
	HrgBeli  float64 `json:"hrg_beli" gorm:"default:0"`
	Qty      int     `json:"qty" gorm:"default:0"`
	Gol1     float64 `json:"gol1" gorm:"default:0"`
	Golongan *string `json:"golongan" gorm:"type:varchar(100)"`
	SubGol   *string `json:"sub_gol" gorm:"type:varchar(100)"`
	QtyMin   int     `json:"qty_min" gorm:"default:0"`
	QtyMax   int     `json:"qty_max" gorm:"default:0"`
	KodeSupl *string `json:"kode_supl" gorm:"type:varchar(100)"`
	// ImageURL holds either an uploaded data URI or an external URL.
	ImageURL  *string   `json:"imageUrl" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (item *InventoryItem) BeforeCreate(tx *gorm.DB) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return nil
}

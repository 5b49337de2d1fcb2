package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stock is a listed instrument with its current reference price.
type Stock struct {
	gorm.Model   `json:"-"`
	StockID      string          `gorm:"uniqueIndex" json:"stock_id"`
	Symbol       string          `gorm:"uniqueIndex" json:"symbol"`
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `gorm:"type:decimal(20,4)" json:"current_price"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SimulationDate is the single-row business calendar driven by the day-advance trigger.
type SimulationDate struct {
	gorm.Model    `json:"-"`
	CurrentDate   time.Time `json:"current_date"`
	InitialDate   time.Time `json:"initial_date"`
	DaysAdvanced  int       `json:"days_advanced"`
	UpdatedBy     string    `json:"updated_by"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

package entities

import "time"

// Category is a browseable grouping an asset must belong to.
type Category struct {
	ID        string    `gorm:"type:varchar(40);primaryKey"`
	Name      string    `gorm:"type:varchar(100);not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Category) TableName() string {
	return "categories"
}

package models

// RestaurantTable is a bookable table.
type RestaurantTable struct {
	BaseModel
	TenantID string `gorm:"type:char(36);not null;index" json:"tenantId"`
	Name     string `gorm:"type:varchar(50);not null" json:"name"`
	Capacity int    `gorm:"not null;default:2" json:"capacity"`
	Area     string `gorm:"type:varchar(50)" json:"area"`
	Active   bool   `gorm:"not null;default:true" json:"active"`
}

func (RestaurantTable) TableName() string {
	return "restaurant_tables"
}

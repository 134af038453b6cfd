package database

import (
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

// Models lists every table owned by the service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Tenant{},
		&models.UserTenant{},
		&models.RestaurantTable{},
		&models.Booking{},
		&models.CateringPackage{},
		&models.CateringOrder{},
		&models.NotificationPreference{},
		&models.EmailTemplate{},
		&models.WidgetConfig{},
	}
}

func Migrate(db *gorm.DB) error {
	utils.InfoLogger.Info("Running AutoMigrate")
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	utils.InfoLogger.Info("AutoMigrate completed")

	return ApplyConstraints(db)
}

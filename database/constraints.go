package database

import (
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

// BookingOverlapConstraint is the Postgres exclusion constraint that keeps two active bookings
// from overlapping on the same table.
const BookingOverlapConstraint = "bookings_no_overlap"

var postgresConstraintStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + BookingOverlapConstraint + `') THEN
		ALTER TABLE bookings ADD CONSTRAINT ` + BookingOverlapConstraint + `
			EXCLUDE USING gist (
				table_id WITH =,
				tstzrange(start_at, end_at, '[)') WITH &&
			) WHERE (status IN ('confirmed', 'seated'));
	END IF;
END
$$`,
}

// ApplyConstraints installs database-level guarantees the ORM cannot express. Only Postgres
// supports exclusion constraints; other drivers rely on the application-level check and lock.
func ApplyConstraints(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		utils.InfoLogger.Infof("Skipping exclusion constraints for %s", db.Dialector.Name())
		return nil
	}

	for _, stmt := range postgresConstraintStatements {
		if err := db.Exec(stmt).Error; err != nil {
			utils.ErrorLogger.WithError(err).Error("Failed to apply booking constraint")
			return err
		}
	}

	var count int64
	db.Raw(`SELECT COUNT(*) FROM pg_constraint WHERE conname = ?`, BookingOverlapConstraint).Scan(&count)
	utils.InfoLogger.Infof("Constraint %s present: %t", BookingOverlapConstraint, count > 0)
	return nil
}

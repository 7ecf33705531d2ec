// Package activity appends rows to the per-user audit log.
//
// Recording is best-effort: a failed insert is logged and swallowed so it can
// never abort or roll back the mutation that triggered it.
package activity

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/flowapp/flow-server/pkg/flow/models"
)

// Record appends one immutable activity row. The db handle may be a
// transaction; since errors are swallowed here a failed insert does not
// propagate into the surrounding transaction's error path.
func Record(db *gorm.DB, userID, action, entityType, entityID, entityTitle, details string) {
	row := models.Activity{
		UserID:      userID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		EntityTitle: entityTitle,
		Details:     details,
	}
	if err := db.Create(&row).Error; err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":     userID,
			"action":      action,
			"entity_type": entityType,
		}).WithError(err).Warn("failed to record activity")
	}
}

package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/services"
	"github.com/rihlaapp/rihla-backend/pkg/utils"
)

// ConfirmReady records the driver's readiness for an upcoming trip
func ConfirmReady(driverService *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid trip ID"})
			return
		}

		trip, err := driverService.ConfirmReady(c.Request.Context(), currentUserID(c), uint(tripID))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": "Readiness confirmed. Your passengers have been notified.",
			"trip":    trip,
		})
	}
}

// GetDriverDashboard summarizes the driver's upcoming work and earnings
func GetDriverDashboard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := currentUserID(c)
		now := time.Now()

		var upcoming []models.Trip
		db.Where("driver_id = ? AND status IN ? AND departure_time > ?",
			driverID,
			[]models.TripStatus{models.TripStatusScheduled, models.TripStatusDriverConfirmed},
			now).
			Order("departure_time ASC").
			Find(&upcoming)

		var completedCount int64
		db.Model(&models.Trip{}).
			Where("driver_id = ? AND status = ?", driverID, models.TripStatusCompleted).
			Count(&completedCount)

		var wallet models.Wallet
		balanceCents := int64(0)
		if result := db.Where("user_id = ?", driverID).First(&wallet); result.Error == nil {
			balanceCents = wallet.BalanceCents
		}

		var driver models.User
		if result := db.First(&driver, driverID); result.Error != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		c.JSON(200, gin.H{
			"upcomingTrips":  upcoming,
			"completedTrips": completedCount,
			"balanceEGP":     utils.FormatEGP(balanceCents),
			"noShowCount":    driver.NoShowCount,
			"isBanned":       driver.IsBanned,
		})
	}
}

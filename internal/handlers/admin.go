package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/services"
)

// GetAlerts lists operational alerts, unresolved first
func GetAlerts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Preload("Trip").Preload("Driver")
		if c.Query("resolved") == "false" {
			query = query.Where("is_resolved = ?", false)
		}

		var alerts []models.AdminAlert
		if result := query.Order("is_resolved ASC, created_at DESC").Find(&alerts); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch alerts"})
			return
		}

		c.JSON(200, gin.H{"alerts": alerts})
	}
}

type MarkNoShowInput struct {
	DriverID uint `json:"driverId" binding:"required"`
	TripID   uint `json:"tripId" binding:"required"`
}

// MarkNoShow records a driver no-show: cancels and refunds the trip,
// resolves its alerts and bans the driver on the second strike
func MarkNoShow(driverService *services.DriverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input MarkNoShowInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		result, err := driverService.MarkNoShow(c.Request.Context(), currentUserID(c), input.DriverID, input.TripID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":     "No-show recorded",
			"noShowCount": result.NoShowCount,
			"isBanned":    result.IsBanned,
		})
	}
}

// GetDashboardStats gives admins a quick operational overview
func GetDashboardStats(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats struct {
			Users            int64 `json:"users"`
			Drivers          int64 `json:"drivers"`
			ScheduledTrips   int64 `json:"scheduledTrips"`
			OpenAlerts       int64 `json:"openAlerts"`
			PendingDeposits  int64 `json:"pendingDeposits"`
			BannedDrivers    int64 `json:"bannedDrivers"`
			ConnectedClients int   `json:"connectedClients"`
		}

		db.Model(&models.User{}).Count(&stats.Users)
		db.Model(&models.User{}).Where("role = ?", models.UserRoleDriver).Count(&stats.Drivers)
		db.Model(&models.Trip{}).Where("status = ?", models.TripStatusScheduled).Count(&stats.ScheduledTrips)
		db.Model(&models.AdminAlert{}).Where("is_resolved = ?", false).Count(&stats.OpenAlerts)
		db.Model(&models.DepositRequest{}).Where("status = ?", models.DepositStatusPending).Count(&stats.PendingDeposits)
		db.Model(&models.User{}).Where("role = ? AND is_banned = ?", models.UserRoleDriver, true).Count(&stats.BannedDrivers)
		stats.ConnectedClients = hub.GetConnectedClients()

		c.JSON(200, stats)
	}
}

// GetUsers lists accounts for the admin console
func GetUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Model(&models.User{})
		if role := c.Query("role"); role != "" {
			query = query.Where("role = ?", role)
		}
		if c.Query("banned") == "true" {
			query = query.Where("is_banned = ?", true)
		}

		var users []models.User
		if result := query.Order("created_at DESC").Find(&users); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch users"})
			return
		}

		c.JSON(200, gin.H{"users": users})
	}
}

type SetBanInput struct {
	Banned bool   `json:"banned"`
	Reason string `json:"reason"`
}

// SetUserBan manually bans or reinstates an account. Reinstating also
// resets the no-show counter, otherwise the next strike would re-ban.
func SetUserBan(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid user ID"})
			return
		}

		var input SetBanInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if result := db.First(&user, userID); result.Error != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		user.IsBanned = input.Banned
		user.BanReason = input.Reason
		if !input.Banned {
			user.NoShowCount = 0
			user.BanReason = ""
		}

		if result := db.Save(&user); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to update user"})
			return
		}

		message := "User reinstated"
		if input.Banned {
			message = "User banned"
		}
		c.JSON(200, gin.H{"message": message, "user": gin.H{
			"id":          user.ID,
			"isBanned":    user.IsBanned,
			"banReason":   user.BanReason,
			"noShowCount": user.NoShowCount,
		}})
	}
}

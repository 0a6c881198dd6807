package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rihlaapp/rihla-backend/internal/models"
)

// GetNotifications lists the caller's notifications, newest first
func GetNotifications(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var notifications []models.Notification
		if result := db.Where("user_id = ?", currentUserID(c)).
			Order("created_at DESC").
			Limit(100).
			Find(&notifications); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch notifications"})
			return
		}

		c.JSON(200, gin.H{"notifications": notifications})
	}
}

// GetUnreadCount returns the caller's unread notification count
func GetUnreadCount(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var count int64
		db.Model(&models.Notification{}).
			Where("user_id = ? AND is_read = ?", currentUserID(c), false).
			Count(&count)

		c.JSON(200, gin.H{"unread": count})
	}
}

// MarkNotificationRead marks one of the caller's notifications as read
func MarkNotificationRead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		notificationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid notification ID"})
			return
		}

		result := db.Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", notificationID, currentUserID(c)).
			Update("is_read", true)
		if result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to update notification"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(404, gin.H{"error": "Notification not found"})
			return
		}

		c.JSON(200, gin.H{"message": "Notification marked as read"})
	}
}

// MarkAllNotificationsRead marks everything unread as read
func MarkAllNotificationsRead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if result := db.Model(&models.Notification{}).
			Where("user_id = ? AND is_read = ?", currentUserID(c), false).
			Update("is_read", true); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to update notifications"})
			return
		}

		c.JSON(200, gin.H{"message": "All notifications marked as read"})
	}
}

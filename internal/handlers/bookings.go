package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/services"
	"github.com/rihlaapp/rihla-backend/pkg/utils"
)

type BookSeatInput struct {
	TripID uint `json:"tripId" binding:"required"`
	Seats  int  `json:"seats" binding:"required,min=1,max=10"`
}

func BookSeat(coordinator *services.BookingCoordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input BookSeatInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		result, err := coordinator.BookSeat(c.Request.Context(), currentUserID(c), input.TripID, input.Seats)
		if err != nil {
			respondError(c, err)
			return
		}

		if result.Waitlisted {
			c.JSON(200, gin.H{
				"message":    "The trip is full. You have been added to the waitlist.",
				"waitlisted": true,
				"position":   result.Position,
			})
			return
		}

		c.JSON(201, gin.H{
			"message":    "Booking confirmed",
			"booking":    result.Booking,
			"chargedEGP": utils.FormatEGP(result.TotalCents),
		})
	}
}

func CancelBooking(coordinator *services.BookingCoordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid booking ID"})
			return
		}

		refundCents, err := coordinator.CancelBooking(c.Request.Context(), currentUserID(c), uint(bookingID))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":     "Booking cancelled",
			"refundedEGP": utils.FormatEGP(refundCents),
		})
	}
}

// GetMyBookings lists the authenticated user's bookings, newest first
func GetMyBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var bookings []models.Booking
		if result := db.Preload("Trip").Preload("Trip.Driver").
			Where("user_id = ?", currentUserID(c)).
			Order("created_at DESC").
			Find(&bookings); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, gin.H{"bookings": bookings})
	}
}

// GetMyWaitlist lists the trips the user is currently queued for
func GetMyWaitlist(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var entries []models.WaitlistEntry
		if result := db.Preload("Trip").
			Where("user_id = ?", currentUserID(c)).
			Order("created_at DESC").
			Find(&entries); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch waitlist entries"})
			return
		}

		c.JSON(200, gin.H{"waitlist": entries})
	}
}

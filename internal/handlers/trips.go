package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/services"
)

type CreateTripInput struct {
	FromCity          string    `json:"fromCity" binding:"required"`
	ToCity            string    `json:"toCity" binding:"required"`
	GatheringLocation string    `json:"gatheringLocation" binding:"required"`
	DepartureTime     time.Time `json:"departureTime" binding:"required"`
	PriceCents        int64     `json:"priceCents" binding:"required,min=1"`
	TotalSeats        int       `json:"totalSeats" binding:"required,min=1,max=50"`
	Notes             string    `json:"notes"`
}

func CreateTrip(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != string(models.UserRoleDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can create trips"})
			return
		}

		var input CreateTripInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if !input.DepartureTime.After(time.Now()) {
			c.JSON(400, gin.H{"error": "Departure time must be in the future"})
			return
		}

		var driver models.User
		if result := db.First(&driver, currentUserID(c)); result.Error != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}
		if driver.IsBanned {
			c.JSON(403, gin.H{"error": "Your account is suspended"})
			return
		}

		trip := models.Trip{
			DriverID:          driver.ID,
			FromCity:          input.FromCity,
			ToCity:            input.ToCity,
			GatheringLocation: input.GatheringLocation,
			DepartureTime:     input.DepartureTime,
			PriceCents:        input.PriceCents,
			TotalSeats:        input.TotalSeats,
			AvailableSeats:    input.TotalSeats,
			Status:            models.TripStatusScheduled,
			Notes:             input.Notes,
		}

		if result := db.Create(&trip); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to create trip"})
			return
		}

		if services.RedisClient != nil {
			_ = services.InvalidateTripSearchCache(c.Request.Context())
		}

		c.JSON(201, gin.H{"message": "Trip created successfully", "trip": trip})
	}
}

// GetTrips lists upcoming scheduled trips, filterable by route and date.
// Search pages are served from Redis when warm.
func GetTrips(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		fromCity := c.Query("fromCity")
		toCity := c.Query("toCity")
		date := c.Query("date") // YYYY-MM-DD
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		const pageSize = 20

		cacheKey := services.TripSearchKey(fromCity, toCity, date, page)
		if services.RedisClient != nil {
			var cached []models.Trip
			if err := services.GetCachedTripSearch(c.Request.Context(), cacheKey, &cached); err == nil {
				c.JSON(200, gin.H{"trips": cached, "page": page, "cached": true})
				return
			}
		}

		query := db.Preload("Driver").
			Where("status IN ?", []models.TripStatus{models.TripStatusScheduled, models.TripStatusDriverConfirmed}).
			Where("departure_time > ?", time.Now())

		if fromCity != "" {
			query = query.Where("LOWER(from_city) = LOWER(?)", fromCity)
		}
		if toCity != "" {
			query = query.Where("LOWER(to_city) = LOWER(?)", toCity)
		}
		if date != "" {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				c.JSON(400, gin.H{"error": "Invalid date format, expected YYYY-MM-DD"})
				return
			}
			query = query.Where("departure_time >= ? AND departure_time < ?", day, day.Add(24*time.Hour))
		}

		var trips []models.Trip
		if result := query.Order("departure_time ASC").
			Offset((page - 1) * pageSize).Limit(pageSize).
			Find(&trips); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch trips"})
			return
		}

		if services.RedisClient != nil {
			_ = services.CacheTripSearch(c.Request.Context(), cacheKey, trips)
		}

		c.JSON(200, gin.H{"trips": trips, "page": page})
	}
}

func GetTrip(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid trip ID"})
			return
		}

		var trip models.Trip
		if result := db.Preload("Driver").First(&trip, tripID); result.Error != nil {
			c.JSON(404, gin.H{"error": "Trip not found"})
			return
		}

		var confirmedCount int64
		db.Model(&models.Booking{}).
			Where("trip_id = ? AND status = ?", trip.ID, models.BookingStatusConfirmed).
			Count(&confirmedCount)

		var waitlistCount int64
		db.Model(&models.WaitlistEntry{}).Where("trip_id = ?", trip.ID).Count(&waitlistCount)

		c.JSON(200, gin.H{
			"trip":              trip,
			"confirmedBookings": confirmedCount,
			"waitlistLength":    waitlistCount,
		})
	}
}

// GetDriverTrips lists the authenticated driver's own trips
func GetDriverTrips(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var trips []models.Trip
		if result := db.Where("driver_id = ?", currentUserID(c)).
			Order("departure_time DESC").
			Find(&trips); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch trips"})
			return
		}

		c.JSON(200, gin.H{"trips": trips})
	}
}

// GetTripBookings lists the passenger manifest for the driver's trip
func GetTripBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid trip ID"})
			return
		}

		var trip models.Trip
		if result := db.First(&trip, tripID); result.Error != nil {
			c.JSON(404, gin.H{"error": "Trip not found"})
			return
		}
		if trip.DriverID != currentUserID(c) && c.GetString("role") != string(models.UserRoleAdmin) {
			c.JSON(403, gin.H{"error": "This trip does not belong to you"})
			return
		}

		var bookings []models.Booking
		if result := db.Preload("User").
			Where("trip_id = ? AND status IN ?", trip.ID,
				[]models.BookingStatus{models.BookingStatusConfirmed, models.BookingStatusCompleted}).
			Find(&bookings); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		var waitlist []models.WaitlistEntry
		db.Preload("User").Where("trip_id = ?", trip.ID).Order("position ASC").Find(&waitlist)

		c.JSON(200, gin.H{"bookings": bookings, "waitlist": waitlist})
	}
}

func CancelTrip(coordinator *services.BookingCoordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid trip ID"})
			return
		}

		if err := coordinator.CancelTrip(c.Request.Context(), currentUserID(c), uint(tripID)); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"message": "Trip cancelled. All confirmed passengers were refunded."})
	}
}

func CompleteTrip(coordinator *services.BookingCoordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid trip ID"})
			return
		}

		if err := coordinator.CompleteTrip(c.Request.Context(), currentUserID(c), uint(tripID)); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"message": "Trip marked as completed"})
	}
}

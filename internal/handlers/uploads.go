package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rihlaapp/rihla-backend/internal/services"
)

const maxReceiptSize = 5 << 20 // 5 MB

// UploadReceipt stores a deposit receipt image and returns its URL for
// use in a deposit request
func UploadReceipt() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("receipt")
		if err != nil {
			c.JSON(400, gin.H{"error": "Receipt file is required"})
			return
		}

		if file.Size > maxReceiptSize {
			c.JSON(400, gin.H{"error": "Receipt file must be under 5 MB"})
			return
		}

		contentType := file.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
			c.JSON(400, gin.H{"error": "Receipt must be an image or a PDF"})
			return
		}

		path, err := services.UploadReceipt(file)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to upload receipt"})
			return
		}

		c.JSON(201, gin.H{"receiptUrl": services.GetReceiptURL(path)})
	}
}

package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rihlaapp/rihla-backend/internal/models"
	"github.com/rihlaapp/rihla-backend/internal/services"
	"github.com/rihlaapp/rihla-backend/pkg/utils"
)

// GetWallet returns the caller's balance and recent ledger entries
func GetWallet(walletService *services.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, txns, err := walletService.Overview(c.Request.Context(), currentUserID(c), 50)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"wallet":       wallet,
			"balanceEGP":   utils.FormatEGP(wallet.BalanceCents),
			"transactions": txns,
		})
	}
}

type DepositInput struct {
	AmountCents   int64  `json:"amountCents" binding:"required,min=1"`
	PaymentMethod string `json:"paymentMethod" binding:"required,oneof=vodafone_cash instapay bank_transfer"`
	ReceiptURL    string `json:"receiptUrl"`
}

func RequestDeposit(walletService *services.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input DepositInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		deposit, err := walletService.RequestDeposit(c.Request.Context(), currentUserID(c), input.AmountCents, input.PaymentMethod, input.ReceiptURL)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, gin.H{
			"message": "Deposit request submitted. It will be reviewed shortly.",
			"deposit": deposit,
		})
	}
}

// GetMyDeposits lists the caller's deposit requests
func GetMyDeposits(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var deposits []models.DepositRequest
		if result := db.Where("user_id = ?", currentUserID(c)).
			Order("created_at DESC").
			Find(&deposits); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch deposit requests"})
			return
		}

		c.JSON(200, gin.H{"deposits": deposits})
	}
}

// GetPendingDeposits lists deposit requests awaiting review (admin)
func GetPendingDeposits(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var deposits []models.DepositRequest
		if result := db.Preload("User").
			Where("status = ?", models.DepositStatusPending).
			Order("created_at ASC").
			Find(&deposits); result.Error != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch deposit requests"})
			return
		}

		c.JSON(200, gin.H{"deposits": deposits})
	}
}

func ApproveDeposit(walletService *services.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		depositID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid deposit ID"})
			return
		}

		newBalance, err := walletService.ApproveDeposit(c.Request.Context(), currentUserID(c), uint(depositID))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message":       "Deposit approved",
			"newBalanceEGP": utils.FormatEGP(newBalance),
		})
	}
}

type RejectDepositInput struct {
	Reason string `json:"reason"`
}

func RejectDeposit(walletService *services.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		depositID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid deposit ID"})
			return
		}

		var input RejectDepositInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if err := walletService.RejectDeposit(c.Request.Context(), currentUserID(c), uint(depositID), input.Reason); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"message": "Deposit rejected"})
	}
}

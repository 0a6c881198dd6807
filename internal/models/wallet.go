package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet holds one user's prepaid balance. Amounts are integer cents
// (piasters); the balance never goes negative through a booking debit.
type Wallet struct {
	gorm.Model
	UserID       uint  `json:"userId" gorm:"not null;uniqueIndex"`
	BalanceCents int64 `json:"balanceCents" gorm:"not null;default:0"`
}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Transaction is an append-only ledger entry. AmountCents is a positive
// magnitude; the sign is implied by Type. Rows are never updated or deleted.
type Transaction struct {
	gorm.Model
	WalletID    uint              `json:"walletId" gorm:"not null;index"`
	Type        TransactionType   `json:"type" gorm:"not null"`
	AmountCents int64             `json:"amountCents" gorm:"not null"`
	Status      TransactionStatus `json:"status" gorm:"not null;default:'completed'"`
	Reference   string            `json:"reference" gorm:"not null"`
	Metadata    string            `json:"metadata,omitempty"`
}

type DepositStatus string

const (
	DepositStatusPending  DepositStatus = "pending"
	DepositStatusApproved DepositStatus = "approved"
	DepositStatusRejected DepositStatus = "rejected"
)

// DepositRequest is a manual top-up claim pending human review. Approval is
// the only path that credits a wallet with a deposit transaction.
type DepositRequest struct {
	gorm.Model
	UserID        uint          `json:"userId" gorm:"not null;index"`
	User          User          `json:"user"`
	AmountCents   int64         `json:"amountCents" gorm:"not null"`
	PaymentMethod string        `json:"paymentMethod" gorm:"not null"`
	ReceiptURL    string        `json:"receiptUrl"`
	Status        DepositStatus `json:"status" gorm:"not null;default:'pending';index"`
	ReviewedBy    *uint         `json:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time    `json:"reviewedAt,omitempty"`
	AdminNote     string        `json:"adminNote,omitempty"`
}

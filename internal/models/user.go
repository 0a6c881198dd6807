package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleClient UserRole = "client"
	UserRoleDriver UserRole = "driver"
	UserRoleAdmin  UserRole = "admin"
)

type User struct {
	gorm.Model
	Username     string   `json:"username" gorm:"column:username;unique;not null"`
	Email        string   `json:"email" gorm:"column:email;unique;not null"`
	Password     string   `json:"-" gorm:"-:migration"` // Temporary field for password handling
	PasswordHash string   `json:"-" gorm:"column:password_hash;not null"`
	PhoneNumber  string   `json:"phoneNumber" gorm:"column:phone_number"`
	Role         UserRole `json:"role" gorm:"column:role;not null;default:'client'"`
	NoShowCount  int      `json:"noShowCount" gorm:"column:no_show_count;not null;default:0"`
	IsBanned     bool     `json:"isBanned" gorm:"column:is_banned;not null;default:false"`
	BanReason    string   `json:"banReason,omitempty" gorm:"column:ban_reason"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

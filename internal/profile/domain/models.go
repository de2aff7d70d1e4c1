package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Profile is the portal-side record of a signed-up customer. Its ID equals
// the identity ID and ERPCustomerID is the key the document gateway knows.
type Profile struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	Email         string          `gorm:"not null" json:"email"`
	FirstName     string          `gorm:"column:first_name;not null" json:"first_name"`
	LastName      string          `gorm:"column:last_name;not null" json:"last_name"`
	DisplayName   *string         `gorm:"column:display_name" json:"display_name"`
	ERPCustomerID string          `gorm:"column:erp_customer_id;not null;index" json:"erp_customer_id"`
	Street        *string         `gorm:"column:street" json:"street"`
	City          *string         `gorm:"column:city" json:"city"`
	State         *string         `gorm:"column:state" json:"state"`
	ZipCode       *string         `gorm:"column:zip_code" json:"zip_code"`
	DateOfBirth   *datatypes.Date `gorm:"column:date_of_birth" json:"-"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// BirthDate renders the date of birth as YYYY-MM-DD, or nil when unset.
func (p Profile) BirthDate() *string {
	if p.DateOfBirth == nil {
		return nil
	}
	formatted := time.Time(*p.DateOfBirth).Format(DateLayout)
	return &formatted
}

// GreetingName is the name shown on the dashboard.
func (p Profile) GreetingName() string {
	if p.FirstName != "" {
		return p.FirstName
	}
	return p.Email
}

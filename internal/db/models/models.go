package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Customer struct {
	ID            uuid.UUID `db:"id"`
	Company       string    `db:"company"`
	ContactPerson string    `db:"contact_person"`
	Address       string    `db:"address"`
	PostalCode    string    `db:"postal_code"`
	City          string    `db:"city"`
	Email         string    `db:"email"`
	Phone         string    `db:"phone"`

	DefaultHourlyRate *float64 `db:"default_hourly_rate"`

	// Billing fields default to the base address when left empty on create.
	BillingAddress    string `db:"billing_address"`
	BillingPostalCode string `db:"billing_postal_code"`
	BillingCity       string `db:"billing_city"`
	BillingEmail      string `db:"billing_email"`

	CreatedAt time.Time `db:"created_at"`
}

type Project struct {
	ID          uuid.UUID      `db:"id"`
	CustomerID  uuid.UUID      `db:"customer_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	IsQuote     bool           `db:"is_quote"`
	HourlyRate  *float64       `db:"hourly_rate"`
	Status      string         `db:"status"` // "Open", "Quoted", "Closed"
	Path        string         `db:"path"`   // project folder on disk
	Tags        pq.StringArray `db:"tags"`
	CreatedAt   time.Time      `db:"created_at"`
}

// ProjectWithCustomer carries the customer company name for display.
type ProjectWithCustomer struct {
	Project
	CustomerCompany string `db:"customer_company"`
}

type Employee struct {
	ID        uuid.UUID `db:"id"`
	DiscordID string    `db:"discord_id"`
	Username  string    `db:"username"`

	IsAdmin                 bool `db:"is_admin"`
	CanManageProjects       bool `db:"can_manage_projects"`
	CanSeeCustomersProjects bool `db:"can_see_customers_projects"`
	Active                  bool `db:"active"`

	CreatedAt time.Time `db:"created_at"`
}

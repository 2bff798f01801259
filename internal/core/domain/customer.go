package domain

import "time"

type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string // empty when not provided
	CreatedAt time.Time
}

type CustomerFilter struct {
	NameContains  string
	EmailContains string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

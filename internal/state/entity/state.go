package entity

import "time"

// State is a row of the `states` table.
type State struct {
	ID        int64     `db:"id" json:"id"`
	StateName string    `db:"state_name" json:"state_name"`
	Logo      *string   `db:"logo" json:"logo"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Stats summarises how many states carry a logo.
type Stats struct {
	Total          int     `db:"total" json:"total"`
	WithLogo       int     `db:"with_logo" json:"withLogo"`
	WithoutLogo    int     `db:"-" json:"withoutLogo"`
	LogoPercentage float64 `db:"-" json:"logoPercentage"`
}

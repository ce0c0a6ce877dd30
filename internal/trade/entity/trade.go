package entity

import "time"

// Trade is a row of the `trades` table.
type Trade struct {
	ID        int64     `db:"id" json:"id"`
	TradeName string    `db:"trade_name" json:"trade_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Stats struct {
	Total             int     `json:"total"`
	AverageNameLength float64 `json:"averageNameLength"`
	LongestTradeName  string  `json:"longestTradeName"`
	ShortestTradeName string  `json:"shortestTradeName"`
	RecentlyAdded     []Trade `json:"recentlyAdded"`
}

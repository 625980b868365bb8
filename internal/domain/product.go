package domain

import "time"

// PlayerPlaceholder is replaced by the sanitized player name in RconCommand.
const PlayerPlaceholder = "{player}"

type Product struct {
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Category    string    `json:"category,omitempty"`
	RconCommand string    `json:"rconCommand"`
	CreatedAt   time.Time `json:"createdAt"`
}

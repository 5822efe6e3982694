package models

// Spot is the catalog snapshot of a parking spot. PricePerHour is in minor units.
type Spot struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	PricePerHour int64   `db:"price_per_hour" json:"pricePerHour"`
	Latitude     float64 `db:"latitude" json:"latitude"`
	Longitude    float64 `db:"longitude" json:"longitude"`
	Available    bool    `db:"available" json:"available"`
}

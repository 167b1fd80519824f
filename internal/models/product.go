package models

import "time"

const (
	DefaultPrimaryColor   = "#00ff00"
	DefaultSecondaryColor = "#00cc00"
	DefaultAccentColor    = "#66ff66"
)

type Product struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Price          int64     `json:"price"`
	ImageURL       string    `json:"image_url"`
	PrimaryColor   string    `json:"primary_color"`
	SecondaryColor string    `json:"secondary_color"`
	AccentColor    string    `json:"accent_color"`
	Stock          int64     `json:"stock"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProductUpdate replaces name, description and price; nil fields keep their value.
type ProductUpdate struct {
	ID             uint64
	Name           string
	Description    string
	Price          int64
	ImageURL       *string
	PrimaryColor   *string
	SecondaryColor *string
	AccentColor    *string
	Stock          *int64
}

package models

import "time"

type University struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   *string   `json:"country,omitempty"`
	LogoURL   *string   `json:"logoUrl,omitempty"`
	Domains   []string  `json:"domains"`
	CreatedAt time.Time `json:"createdAt"`
}

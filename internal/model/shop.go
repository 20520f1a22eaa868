package model

// Shop is a named container of listings.
// Admin shops are not owned by any player and have unlimited supply.
type Shop struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsAdmin     bool   `json:"is_admin"`
}

// Package domain contains entities without logic, just meta-data.
package domain

type (
	UserID string
	ConnID string
)

type User struct {
	ID        UserID `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

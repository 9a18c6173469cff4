package users

import "time"

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	PictureURL  string    `json:"pictureUrl"`
	APIKey      string    `json:"-"`
	IsOnboarded bool      `json:"isOnboarded"`
	IsNewUser   bool      `json:"isNewUser"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

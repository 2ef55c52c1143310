package types

import (
	"slices"
	"time"
)

type User struct {
	Id             int64     `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	IsAuthor       bool      `json:"isAuthor"`
	PurchasedBooks []int64   `json:"purchasedBooks"`
	CreatedAt      time.Time `json:"createdAt"`
	Avatar         string    `json:"avatar"`
}

// Public returns a copy without the credential hash.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}

	c := u.Clone()
	c.PasswordHash = ""
	return c
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}

	c := *u
	c.PurchasedBooks = slices.Clone(u.PurchasedBooks)
	if c.PurchasedBooks == nil {
		c.PurchasedBooks = []int64{}
	}
	return &c
}

func (u *User) HasPurchased(bookId int64) bool {
	return u != nil && slices.Contains(u.PurchasedBooks, bookId)
}

type Registration struct {
	Email     string `json:"email" validate:"required,emailaddr"`
	Username  string `json:"username" validate:"required,min=3,username"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	IsAuthor  bool   `json:"isAuthor"`
}

// ProfileUpdate carries the profile fields a user may change; nil means "leave as is".
type ProfileUpdate struct {
	Email     *string `json:"email" validate:"omitempty,emailaddr"`
	Username  *string `json:"username" validate:"omitempty,min=3,username"`
	FirstName *string `json:"firstName" validate:"omitempty,min=1"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1"`
	Avatar    *string `json:"avatar" validate:"omitempty,http_url"`
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

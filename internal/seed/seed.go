// Package seed holds the demo catalog and accounts a fresh store starts with.
package seed

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bookcatalog/internal/types"
)

func ptr[T any](v T) *T { return &v }

const coverParams = "?auto=compress&cs=tinysrgb&w=1260&h=750&dpr=1"

func Books() []*types.Book {
	return []*types.Book{
		{Id: 1, BookFields: types.BookFields{
			Title:           "The Great Gatsby",
			Author:          "F. Scott Fitzgerald",
			ISBN:            "9780743273565",
			PublicationDate: types.NewDate(1925, time.April, 10),
			Description: "Set in the Jazz Age on Long Island, the novel depicts narrator Nick Carraway's " +
				"interactions with mysterious millionaire Jay Gatsby and Gatsby's obsession to reunite " +
				"with his former lover, Daisy Buchanan.",
			CoverImage: "https://images.pexels.com/photos/5834/nature-grass-leaf-green.jpg" + coverParams,
			Genre:      "Classic",
			Rating:     ptr(4.3),
			Pages:      ptr(218),
		}},
		{Id: 2, BookFields: types.BookFields{
			Title:           "To Kill a Mockingbird",
			Author:          "Harper Lee",
			ISBN:            "9780061120084",
			PublicationDate: types.NewDate(1960, time.July, 11),
			Description: "The story takes place during three years of the Great Depression in the fictional " +
				"town of Maycomb, Alabama. It focuses on six-year-old Scout Finch, who lives with her older " +
				"brother Jem and their father Atticus, a middle-aged lawyer.",
			CoverImage: "https://images.pexels.com/photos/2228561/pexels-photo-2228561.jpeg" + coverParams,
			Genre:      "Classic",
			Rating:     ptr(4.5),
			Pages:      ptr(324),
			IsFeatured: true,
		}},
		{Id: 3, BookFields: types.BookFields{
			Title:           "Clean Code",
			Author:          "Robert C. Martin",
			ISBN:            "9780132350884",
			PublicationDate: types.NewDate(2008, time.August, 1),
			Description: "Even bad code can function. But if code isn't clean, it can bring a development " +
				"organization to its knees. Every year, countless hours and significant resources are lost " +
				"because of poorly written code.",
			CoverImage: "https://images.pexels.com/photos/4974915/pexels-photo-4974915.jpeg" + coverParams,
			Genre:      "Programming",
			Rating:     ptr(4.7),
			Pages:      ptr(464),
			Price:      ptr(29.99),
			IsPremium:  true,
			IsFeatured: true,
		}},
		{Id: 4, BookFields: types.BookFields{
			Title:           "Algorithms to Live By",
			Author:          "Brian Christian & Tom Griffiths",
			ISBN:            "9781627790369",
			PublicationDate: types.NewDate(2016, time.April, 19),
			Description: "A fascinating exploration of how computer algorithms can be applied to our everyday " +
				"lives, helping to solve common decision-making problems.",
			CoverImage: "https://images.pexels.com/photos/267669/pexels-photo-267669.jpeg" + coverParams,
			Genre:      "Science",
			Rating:     ptr(4.4),
			Pages:      ptr(368),
			Price:      ptr(24.99),
			IsPremium:  true,
		}},
		{Id: 5, BookFields: types.BookFields{
			Title:           "The Psychology of Money",
			Author:          "Morgan Housel",
			ISBN:            "9780857197689",
			PublicationDate: types.NewDate(2020, time.September, 8),
			Description: "Timeless lessons on wealth, greed, and happiness doing well with money isn't " +
				"necessarily about what you know. It's about how you behave.",
			CoverImage: "https://images.pexels.com/photos/951408/pexels-photo-951408.jpeg" + coverParams,
			Genre:      "Finance",
			Rating:     ptr(4.6),
			Pages:      ptr(256),
			Price:      ptr(19.99),
			IsPremium:  true,
			IsFeatured: true,
		}},
		{Id: 6, BookFields: types.BookFields{
			Title:           "Atomic Habits",
			Author:          "James Clear",
			ISBN:            "9780735211292",
			PublicationDate: types.NewDate(2018, time.October, 16),
			Description:     "An easy and proven way to build good habits and break bad ones.",
			CoverImage:      "https://images.pexels.com/photos/3747139/pexels-photo-3747139.jpeg" + coverParams,
			Genre:           "Self-Help",
			Rating:          ptr(4.8),
			Pages:           ptr(320),
			IsFeatured:      true,
		}},
	}
}

type account struct {
	user     types.User
	password string
}

var accounts = []account{
	{
		user: types.User{
			Id: 1, Email: "author@example.com", Username: "author",
			FirstName: "John", LastName: "Doe", IsAuthor: true,
			PurchasedBooks: []int64{4, 5},
			CreatedAt:      time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC),
			Avatar:         "https://ui-avatars.com/api/?name=John+Doe&background=6366f1&color=fff",
		},
		password: "password123",
	},
	{
		user: types.User{
			Id: 2, Email: "reader@example.com", Username: "reader",
			FirstName: "Jane", LastName: "Smith",
			PurchasedBooks: []int64{3},
			CreatedAt:      time.Date(2023, time.February, 20, 0, 0, 0, 0, time.UTC),
			Avatar:         "https://ui-avatars.com/api/?name=Jane+Smith&background=10b981&color=fff",
		},
		password: "password123",
	},
	{
		user: types.User{
			Id: 3, Email: "admin@booksphere.com", Username: "admin",
			FirstName: "Admin", LastName: "User", IsAuthor: true,
			PurchasedBooks: []int64{},
			CreatedAt:      time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
			Avatar:         "https://ui-avatars.com/api/?name=Admin+User&background=dc2626&color=fff",
		},
		password: "admin123",
	},
}

// Users returns the demo accounts with their passwords hashed at the given bcrypt cost.
func Users(cost int) ([]*types.User, error) {
	out := make([]*types.User, 0, len(accounts))
	for _, a := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), cost)
		if err != nil {
			return nil, fmt.Errorf("hashing password of %s: %w", a.user.Username, err)
		}

		u := a.user.Clone()
		u.PasswordHash = string(hash)
		out = append(out, u)
	}
	return out, nil
}

package types

// BookFields is everything about a book except its identifier. Create and update operations take it.
type BookFields struct {
	Title           string   `json:"title" validate:"required,max=100"`
	Author          string   `json:"author" validate:"required,max=100"`
	ISBN            string   `json:"isbn" validate:"required,len=13,number"`
	PublicationDate Date     `json:"publicationDate"`
	Description     string   `json:"description,omitempty" validate:"max=2000"`
	CoverImage      string   `json:"coverImage,omitempty" validate:"omitempty,http_url"`
	Genre           string   `json:"genre,omitempty" validate:"max=50"`
	Pages           *int     `json:"pages,omitempty" validate:"omitempty,min=1,max=10000"`
	Publisher       string   `json:"publisher,omitempty" validate:"max=100"`
	Rating          *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Price           *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	IsPremium       bool     `json:"isPremium"`
	IsFeatured      bool     `json:"isFeatured"`
}

type Book struct {
	Id int64 `json:"id"`
	BookFields
}

// Clone returns a deep copy, so callers never share optional values with the store.
func (b *Book) Clone() *Book {
	if b == nil {
		return nil
	}

	c := *b
	c.BookFields = b.BookFields.Clone()
	return &c
}

func (f BookFields) Clone() BookFields {
	if f.Pages != nil {
		v := *f.Pages
		f.Pages = &v
	}
	if f.Rating != nil {
		v := *f.Rating
		f.Rating = &v
	}
	if f.Price != nil {
		v := *f.Price
		f.Price = &v
	}
	return f
}

// RatingOrZero, PriceOrZero and PagesOrZero treat a missing value as the minimum.
func (f *BookFields) RatingOrZero() float64 {
	if f.Rating == nil {
		return 0
	}
	return *f.Rating
}

func (f *BookFields) PriceOrZero() float64 {
	if f.Price == nil {
		return 0
	}
	return *f.Price
}

func (f *BookFields) PagesOrZero() int {
	if f.Pages == nil {
		return 0
	}
	return *f.Pages
}

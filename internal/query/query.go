// Package query filters and orders book collections. It never touches storage and never
// mutates its input.
package query

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"bookcatalog/internal/apperr"
	"bookcatalog/internal/types"
)

type SortKey string

const (
	SortNone            SortKey = ""
	SortTitle           SortKey = "title"
	SortAuthor          SortKey = "author"
	SortPublicationDate SortKey = "publicationDate"
	SortRating          SortKey = "rating"
	SortPrice           SortKey = "price"
	SortPages           SortKey = "pages"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Spec struct {
	Search    string
	Genre     string
	SortBy    SortKey
	Direction Direction
}

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case SortNone, SortTitle, SortAuthor, SortPublicationDate, SortRating, SortPrice, SortPages:
		return k, nil
	case "pageCount":
		return SortPages, nil
	default:
		return SortNone, apperr.Invalid("sort", "unknown sort key "+s)
	}
}

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return Asc, apperr.Invalid("order", "must be asc or desc")
	}
}

// Normalize checks the sort key and direction and returns spec with both in canonical form.
func (s Spec) Normalize() (Spec, error) {
	key, err := ParseSortKey(string(s.SortBy))
	if err != nil {
		return s, err
	}
	dir, err := ParseDirection(string(s.Direction))
	if err != nil {
		return s, err
	}

	s.SortBy = key
	s.Direction = dir
	return s, nil
}

// Apply returns the books matching spec, in the requested order. Books compare equal on the
// sort key keep their relative order from the input.
func Apply(books []*types.Book, spec Spec) []*types.Book {
	term := strings.ToLower(strings.TrimSpace(spec.Search))

	out := make([]*types.Book, 0, len(books))
	for _, b := range books {
		if term != "" && !matches(b, term) {
			continue
		}
		if spec.Genre != "" && b.Genre != spec.Genre {
			continue
		}
		out = append(out, b)
	}

	if compare := comparator(spec.SortBy); compare != nil {
		desc := spec.Direction == Desc
		slices.SortStableFunc(out, func(a, b *types.Book) int {
			if desc {
				return compare(b, a)
			}
			return compare(a, b)
		})
	}

	return out
}

func matches(b *types.Book, term string) bool {
	for _, field := range []string{b.Title, b.Author, b.ISBN, b.Genre} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func comparator(key SortKey) func(a, b *types.Book) int {
	switch key {
	case SortTitle:
		c := newCollator()
		return func(a, b *types.Book) int { return c.CompareString(a.Title, b.Title) }
	case SortAuthor:
		c := newCollator()
		return func(a, b *types.Book) int { return c.CompareString(a.Author, b.Author) }
	case SortPublicationDate:
		return func(a, b *types.Book) int { return a.PublicationDate.Compare(b.PublicationDate.Time) }
	case SortRating:
		return func(a, b *types.Book) int { return cmp.Compare(a.RatingOrZero(), b.RatingOrZero()) }
	case SortPrice:
		return func(a, b *types.Book) int { return cmp.Compare(a.PriceOrZero(), b.PriceOrZero()) }
	case SortPages:
		return func(a, b *types.Book) int { return cmp.Compare(a.PagesOrZero(), b.PagesOrZero()) }
	default:
		return nil
	}
}

// A collator keeps internal buffers, so each sort gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.English, collate.IgnoreCase)
}

package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"bookcatalog/internal/query"
	"bookcatalog/internal/types"
)

func (a *app) booksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and edit books",
	}

	cmd.AddCommand(
		a.booksListCommand(),
		a.booksGetCommand(),
		a.booksFeaturedCommand(),
		a.booksGenresCommand(),
		a.booksAddCommand(),
		a.booksUpdateCommand(),
		a.booksDeleteCommand(),
		a.booksBuyCommand(),
	)
	return cmd
}

func parseId(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("book id must be a positive integer, got %q", s)
	}
	return id, nil
}

func (a *app) printBooks(bks []*types.Book) error {
	if a.asJson {
		return a.printJson(bks)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tGENRE\tRATING\tPRICE")
	for _, b := range bks {
		price := "-"
		if b.Price != nil {
			price = fmt.Sprintf("%.2f", *b.Price)
		}
		rating := "-"
		if b.Rating != nil {
			rating = fmt.Sprintf("%.1f", *b.Rating)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", b.Id, b.Title, b.Author, b.Genre, rating, price)
	}
	return tw.Flush()
}

func (a *app) printBook(b *types.Book) error {
	if a.asJson {
		return a.printJson(b)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%d\n", b.Id)
	fmt.Fprintf(tw, "Title\t%s\n", b.Title)
	fmt.Fprintf(tw, "Author\t%s\n", b.Author)
	fmt.Fprintf(tw, "ISBN\t%s\n", b.ISBN)
	fmt.Fprintf(tw, "Published\t%s\n", b.PublicationDate)
	fmt.Fprintf(tw, "Genre\t%s\n", b.Genre)
	if b.Rating != nil {
		fmt.Fprintf(tw, "Rating\t%.1f\n", *b.Rating)
	}
	if b.Pages != nil {
		fmt.Fprintf(tw, "Pages\t%d\n", *b.Pages)
	}
	if b.IsPremium {
		fmt.Fprintf(tw, "Price\t%.2f (premium)\n", b.PriceOrZero())
	}
	if b.Description != "" {
		fmt.Fprintf(tw, "Description\t%s\n", b.Description)
	}
	return tw.Flush()
}

func (a *app) booksListCommand() *cobra.Command {
	var search, genre, sortBy, order string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, optionally filtered and sorted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := query.ParseSortKey(sortBy)
			if err != nil {
				return err
			}
			dir, err := query.ParseDirection(order)
			if err != nil {
				return err
			}

			bks, err := a.api.ListBooks(cmd.Context(), query.Spec{Search: search, Genre: genre, SortBy: key, Direction: dir})
			if err != nil {
				return err
			}
			return a.printBooks(bks)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "match title, author, ISBN or genre")
	cmd.Flags().StringVarP(&genre, "genre", "g", "", "exact genre")
	cmd.Flags().StringVar(&sortBy, "sort", "", "title, author, publicationDate, rating, price or pages")
	cmd.Flags().StringVar(&order, "order", "asc", "asc or desc")
	return cmd
}

func (a *app) booksGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}

			b, err := a.api.GetBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printBook(b)
		},
	}
}

func (a *app) booksFeaturedCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "featured",
		Short: "List featured books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bks, err := a.api.Featured(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.printBooks(bks)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of books (server default when 0)")
	return cmd
}

func (a *app) booksGenresCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List genres in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			genres, err := a.api.Genres(cmd.Context())
			if err != nil {
				return err
			}

			if a.asJson {
				return a.printJson(genres)
			}
			for _, g := range genres {
				fmt.Fprintln(a.out, g)
			}
			return nil
		},
	}
}

// bookFlags binds every editable book field; only flags that were set are applied.
type bookFlags struct {
	title, author, isbn, date, description, cover, genre string

	rating, price     float64
	pages             int
	premium, featured bool
}

func (f *bookFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "title")
	fs.StringVar(&f.author, "author", "", "author")
	fs.StringVar(&f.isbn, "isbn", "", "13 digit ISBN")
	fs.StringVar(&f.date, "date", "", "publication date (YYYY-MM-DD)")
	fs.StringVar(&f.description, "description", "", "description")
	fs.StringVar(&f.cover, "cover", "", "cover image URL")
	fs.StringVar(&f.genre, "genre", "", "genre")
	fs.Float64Var(&f.rating, "rating", 0, "rating from 0 to 5")
	fs.Float64Var(&f.price, "price", 0, "price")
	fs.IntVar(&f.pages, "pages", 0, "page count")
	fs.BoolVar(&f.premium, "premium", false, "premium book")
	fs.BoolVar(&f.featured, "featured", false, "featured book")
}

func (f *bookFlags) apply(fs *pflag.FlagSet, dst *types.BookFields) error {
	strs := map[string]struct {
		src string
		dst *string
	}{
		"title":       {f.title, &dst.Title},
		"author":      {f.author, &dst.Author},
		"isbn":        {f.isbn, &dst.ISBN},
		"description": {f.description, &dst.Description},
		"cover":       {f.cover, &dst.CoverImage},
		"genre":       {f.genre, &dst.Genre},
	}
	for name, s := range strs {
		if fs.Changed(name) {
			*s.dst = s.src
		}
	}

	if fs.Changed("date") {
		d, err := types.ParseDate(f.date)
		if err != nil {
			return err
		}
		dst.PublicationDate = d
	}
	if fs.Changed("rating") {
		dst.Rating = &f.rating
	}
	if fs.Changed("price") {
		dst.Price = &f.price
	}
	if fs.Changed("pages") {
		dst.Pages = &f.pages
	}
	if fs.Changed("premium") {
		dst.IsPremium = f.premium
	}
	if fs.Changed("featured") {
		dst.IsFeatured = f.featured
	}
	return nil
}

func (a *app) booksAddCommand() *cobra.Command {
	var f bookFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book (authors only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var fields types.BookFields
			if err := f.apply(cmd.Flags(), &fields); err != nil {
				return err
			}

			b, err := a.api.CreateBook(cmd.Context(), fields)
			if err != nil {
				return err
			}
			return a.printBook(b)
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (a *app) booksUpdateCommand() *cobra.Command {
	var f bookFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of a book (authors only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}

			current, err := a.api.GetBook(cmd.Context(), id)
			if err != nil {
				return err
			}

			fields := current.BookFields
			if err := f.apply(cmd.Flags(), &fields); err != nil {
				return err
			}

			b, err := a.api.UpdateBook(cmd.Context(), id, fields)
			if err != nil {
				return err
			}
			return a.printBook(b)
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (a *app) booksDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a book (authors only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}

			if err := a.api.DeleteBook(cmd.Context(), id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "Deleted book %d\n", id)
			return err
		},
	}
}

func (a *app) booksBuyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "buy ID",
		Short: "Purchase a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}

			u, err := a.api.Purchase(cmd.Context(), id)
			if err != nil {
				return err
			}

			if a.asJson {
				return a.printJson(u)
			}
			_, err = fmt.Fprintf(a.out, "Purchased book %d, you now own %v\n", id, u.PurchasedBooks)
			return err
		},
	}
}

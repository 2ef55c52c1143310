package books

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookcatalog/internal/types"
)

const table = "book"

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, q: queries{g: goqu.Dialect("postgres")}, l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	q  queries
	l  *slog.Logger
}

type pgxBook struct {
	Id              int64      `db:"id" goqu:"skipupdate"`
	Title           string     `db:"title"`
	Author          string     `db:"author"`
	ISBN            string     `db:"isbn"`
	PublicationDate *time.Time `db:"publication_date"`
	Description     string     `db:"description"`
	CoverImage      string     `db:"cover_image"`
	Genre           string     `db:"genre"`
	Pages           *int       `db:"pages"`
	Publisher       string     `db:"publisher"`
	Rating          *float64   `db:"rating"`
	Price           *float64   `db:"price"`
	IsPremium       bool       `db:"is_premium"`
	IsFeatured      bool       `db:"is_featured"`
}

func fromCommon(b *types.Book) pgxBook {
	row := pgxBook{
		Id:          b.Id,
		Title:       b.Title,
		Author:      b.Author,
		ISBN:        b.ISBN,
		Description: b.Description,
		CoverImage:  b.CoverImage,
		Genre:       b.Genre,
		Pages:       b.Pages,
		Publisher:   b.Publisher,
		Rating:      b.Rating,
		Price:       b.Price,
		IsPremium:   b.IsPremium,
		IsFeatured:  b.IsFeatured,
	}

	if !b.PublicationDate.IsZero() {
		t := b.PublicationDate.Time
		row.PublicationDate = &t
	}

	return row
}

func (b *pgxBook) intoCommon(ctx context.Context, l *slog.Logger) *types.Book {
	cover := b.CoverImage
	if cover != "" {
		if _, err := url.Parse(cover); err != nil {
			l.ErrorContext(ctx, "Failed to parse cover URL stored in DB ("+cover+"): "+err.Error())
			cover = ""
		}
	}

	book := &types.Book{
		Id: b.Id,
		BookFields: types.BookFields{
			Title:       b.Title,
			Author:      b.Author,
			ISBN:        b.ISBN,
			Description: b.Description,
			CoverImage:  cover,
			Genre:       b.Genre,
			Pages:       b.Pages,
			Publisher:   b.Publisher,
			Rating:      b.Rating,
			Price:       b.Price,
			IsPremium:   b.IsPremium,
			IsFeatured:  b.IsFeatured,
		},
	}

	if b.PublicationDate != nil {
		d := b.PublicationDate
		book.PublicationDate = types.NewDate(d.Year(), d.Month(), d.Day())
	}

	return book
}

// queries builds the SQL for pgxRepo, separately so it can be checked without a database.
type queries struct {
	g goqu.DialectWrapper
}

func (q queries) all() (string, []any, error) {
	return q.g.From(table).
		Order(goqu.C("id").Asc()).
		ToSQL()
}

func (q queries) byId(id int64) (string, []any, error) {
	return q.g.From(table).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
}

func (q queries) maxId() (string, []any, error) {
	return q.g.From(table).
		Select(goqu.COALESCE(goqu.MAX("id"), 0)).
		ToSQL()
}

func (q queries) insert(books ...*types.Book) (string, []any, error) {
	rows := make([]any, 0, len(books))
	for _, b := range books {
		rows = append(rows, fromCommon(b))
	}

	return q.g.Insert(table).
		Rows(rows...).
		ToSQL()
}

func (q queries) update(b *types.Book) (string, []any, error) {
	return q.g.Update(table).
		Set(fromCommon(b)).
		Where(goqu.C("id").Eq(b.Id)).
		ToSQL()
}

func (q queries) delete(id int64) (string, []any, error) {
	return q.g.Delete(table).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
}

func (p *pgxRepo) All(ctx context.Context) ([]*types.Book, error) {
	sql, params, err := p.q.all()
	if err != nil {
		return nil, err
	}

	var rows []pgxBook

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Book, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.intoCommon(ctx, p.l))
	}

	return ret, nil
}

func (p *pgxRepo) GetById(ctx context.Context, id int64) (*types.Book, error) {
	sql, params, err := p.q.byId(id)
	if err != nil {
		return nil, err
	}

	var row pgxBook

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(ctx, p.l), nil
}

func (p *pgxRepo) MaxId(ctx context.Context) (int64, error) {
	sql, params, err := p.q.maxId()
	if err != nil {
		return 0, err
	}

	var maxId int64
	err = p.pg.QueryRow(ctx, sql, params...).Scan(&maxId)
	return maxId, err
}

func (p *pgxRepo) Insert(ctx context.Context, books ...*types.Book) error {
	if len(books) == 0 {
		return nil
	}

	sql, params, err := p.q.insert(books...)
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func (p *pgxRepo) Update(ctx context.Context, book *types.Book) (bool, error) {
	sql, params, err := p.q.update(book)
	if err != nil {
		return false, err
	}

	tag, err := p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (p *pgxRepo) Delete(ctx context.Context, id int64) (bool, error) {
	sql, params, err := p.q.delete(id)
	if err != nil {
		return false, err
	}

	tag, err := p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

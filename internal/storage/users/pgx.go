package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookcatalog/internal/types"
)

var subPurchases = goqu.Select(goqu.L("array_agg(book_id order by purchase_order)")).
	From("account_purchase").
	Where(goqu.C("account_id").Eq(goqu.C("id").Table("account")))

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, q: queries{g: goqu.Dialect("postgres")}, l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	q  queries
	l  *slog.Logger
}

type pgxUser struct {
	Id           int64     `db:"id" goqu:"skipupdate"`
	Email        string    `db:"email"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	IsAuthor     bool      `db:"is_author"`
	CreatedAt    time.Time `db:"created_at" goqu:"skipupdate"`
	Avatar       string    `db:"avatar"`
}

type pgxUserFull struct {
	Base      pgxUser `db:""` // follow
	Purchases []int64 `db:"purchases"`
}

func fromCommon(u *types.User) pgxUser {
	return pgxUser{
		Id:           u.Id,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsAuthor:     u.IsAuthor,
		CreatedAt:    u.CreatedAt.UTC(),
		Avatar:       u.Avatar,
	}
}

func (row *pgxUserFull) intoCommon() *types.User {
	purchases := row.Purchases
	if purchases == nil {
		purchases = []int64{}
	}

	return &types.User{
		Id:             row.Base.Id,
		Email:          row.Base.Email,
		Username:       row.Base.Username,
		PasswordHash:   row.Base.PasswordHash,
		FirstName:      row.Base.FirstName,
		LastName:       row.Base.LastName,
		IsAuthor:       row.Base.IsAuthor,
		PurchasedBooks: purchases,
		CreatedAt:      row.Base.CreatedAt,
		Avatar:         row.Base.Avatar,
	}
}

type queries struct {
	g goqu.DialectWrapper
}

func (q queries) selectWhere(cond exp.Expression) (string, []any, error) {
	return q.g.From("account").
		Select("account.*", subPurchases.As("purchases")).
		Where(cond).
		ToSQL()
}

func (q queries) byId(id int64) (string, []any, error) {
	return q.selectWhere(goqu.C("id").Eq(id))
}

func (q queries) byEmail(email string) (string, []any, error) {
	return q.selectWhere(goqu.Func("lower", goqu.C("email")).Eq(strings.ToLower(email)))
}

func (q queries) byUsername(username string) (string, []any, error) {
	return q.selectWhere(goqu.Func("lower", goqu.C("username")).Eq(strings.ToLower(username)))
}

func (q queries) maxId() (string, []any, error) {
	return q.g.From("account").
		Select(goqu.COALESCE(goqu.MAX("id"), 0)).
		ToSQL()
}

func (q queries) insert(users ...*types.User) (string, []any, error) {
	rows := make([]any, 0, len(users))
	for _, u := range users {
		rows = append(rows, fromCommon(u))
	}

	return q.g.Insert("account").
		Rows(rows...).
		ToSQL()
}

func (q queries) update(u *types.User) (string, []any, error) {
	return q.g.Update("account").
		Set(fromCommon(u)).
		Where(goqu.C("id").Eq(u.Id)).
		ToSQL()
}

func (q queries) unlinkPurchases(userId int64) (string, []any, error) {
	return q.g.Delete("account_purchase").
		Where(goqu.C("account_id").Eq(userId)).
		ToSQL()
}

func (q queries) linkPurchases(userId int64, bookIds ...int64) (string, []any, error) {
	type row struct {
		AccountId     int64  `db:"account_id"`
		BookId        int64  `db:"book_id"`
		PurchaseOrder uint16 `db:"purchase_order"`
	}

	rows := make([]any, 0, len(bookIds))
	for ix, bookId := range bookIds {
		rows = append(rows, row{
			AccountId:     userId,
			BookId:        bookId,
			PurchaseOrder: uint16(ix + 1),
		})
	}

	return q.g.Insert("account_purchase").
		Rows(rows...).
		ToSQL()
}

func (p *pgxRepo) get(ctx context.Context, sql string, params []any, err error) (*types.User, error) {
	if err != nil {
		return nil, err
	}

	var row pgxUserFull

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(), nil
}

func (p *pgxRepo) GetById(ctx context.Context, id int64) (*types.User, error) {
	sql, params, err := p.q.byId(id)
	return p.get(ctx, sql, params, err)
}

func (p *pgxRepo) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	sql, params, err := p.q.byEmail(email)
	return p.get(ctx, sql, params, err)
}

func (p *pgxRepo) GetByUsername(ctx context.Context, username string) (*types.User, error) {
	sql, params, err := p.q.byUsername(username)
	return p.get(ctx, sql, params, err)
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

func (p *pgxRepo) Insert(ctx context.Context, users ...*types.User) error {
	if len(users) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, p.pg, func(tx pgx.Tx) error {
		sql, params, err := p.q.insert(users...)
		if err != nil {
			return err
		}

		if _, err = tx.Exec(ctx, sql, params...); err != nil {
			return err
		}

		for _, u := range users {
			if err = p.linkPurchases(ctx, tx, u.Id, u.PurchasedBooks...); err != nil {
				return err
			}
		}

		return nil
	})
}

func (p *pgxRepo) Update(ctx context.Context, user *types.User) (bool, error) {
	found := false

	err := pgx.BeginFunc(ctx, p.pg, func(tx pgx.Tx) error {
		sql, params, err := p.q.update(user)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, sql, params...)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return nil
		}

		found = true
		return p.linkPurchases(ctx, tx, user.Id, user.PurchasedBooks...)
	})

	return found, err
}

func (p *pgxRepo) linkPurchases(ctx context.Context, tx pgx.Tx, userId int64, bookIds ...int64) error {
	sql, params, err := p.q.unlinkPurchases(userId)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, sql, params...)
	if err != nil {
		return err
	}

	if len(bookIds) == 0 {
		return nil
	}

	sql, params, err = p.q.linkPurchases(userId, bookIds...)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, sql, params...)
	if err != nil {
		p.l.ErrorContext(ctx, "Failed to store purchases", slog.Int64("user_id", userId), slog.Any("err", err))
	}
	return err
}

package books

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"library/internal/storage"
	"library/internal/types"
)

var subAuthors = goqu.Select(goqu.L("array_agg(author_id order by author_order)")).
	From("book_author").
	Where(goqu.C("book_id").Eq(goqu.C("id").Table("book")))

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxBook struct {
	Id              int64  `db:"id" goqu:"skipinsert"`
	Title           string `db:"title"`
	Isbn            string `db:"isbn"`
	PublicationYear int    `db:"publication_year"`
	AvailableCopies int    `db:"available_copies"`
}

type pgxBookFull struct {
	Base      pgxBook `db:""` // follow
	AuthorIds []int64 `db:"authors"`
}

func (b *pgxBookFull) intoCommon() *types.Book {
	authorIds := b.AuthorIds
	if authorIds == nil {
		authorIds = make([]int64, 0)
	}

	return &types.Book{
		Id:              b.Base.Id,
		Title:           b.Base.Title,
		Isbn:            b.Base.Isbn,
		PublicationYear: b.Base.PublicationYear,
		AvailableCopies: b.Base.AvailableCopies,
		AuthorIds:       authorIds,
	}
}

func (p *pgxRepo) selectFull() *goqu.SelectDataset {
	return p.g.From("book").
		Select("book.*", subAuthors.As("authors"))
}

func (p *pgxRepo) getOne(ctx context.Context, qb *goqu.SelectDataset) (*types.Book, error) {
	sql, params, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxBookFull

	err = pgxscan.Get(ctx, storage.Conn(ctx, p.pg), &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(), nil
}

func (p *pgxRepo) Insert(ctx context.Context, book *types.Book) (*types.Book, error) {
	sql, params, err := p.g.Insert("book").
		Rows(pgxBook{
			Title:           book.Title,
			Isbn:            book.Isbn,
			PublicationYear: book.PublicationYear,
			AvailableCopies: book.AvailableCopies,
		}).
		Returning("id").
		ToSQL()
	if err != nil {
		return nil, err
	}

	var id int64

	err = storage.Conn(ctx, p.pg).QueryRow(ctx, sql, params...).Scan(&id)
	if err != nil {
		return nil, storage.TranslateError(err)
	}

	return &types.Book{
		Id:              id,
		Title:           book.Title,
		Isbn:            book.Isbn,
		PublicationYear: book.PublicationYear,
		AvailableCopies: book.AvailableCopies,
		AuthorIds:       make([]int64, 0),
	}, nil
}

func (p *pgxRepo) GetById(ctx context.Context, id int64) (*types.Book, error) {
	return p.getOne(ctx, p.selectFull().Where(goqu.C("id").Eq(id)))
}

func (p *pgxRepo) GetByIsbn(ctx context.Context, isbn string) (*types.Book, error) {
	return p.getOne(ctx, p.selectFull().Where(goqu.C("isbn").Eq(isbn)))
}

func (p *pgxRepo) GetByIds(ctx context.Context, ids ...int64) (map[int64]*types.Book, error) {
	if len(ids) == 0 {
		return make(map[int64]*types.Book), nil
	}

	sql, params, err := p.selectFull().
		Where(goqu.C("id").In(ids)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxBookFull

	err = pgxscan.Select(ctx, storage.Conn(ctx, p.pg), &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make(map[int64]*types.Book, len(rows))
	for _, row := range rows {
		ret[row.Base.Id] = row.intoCommon()
	}

	return ret, nil
}

func (p *pgxRepo) Search(ctx context.Context, filter Filter) ([]*types.Book, error) {
	sql, params, err := p.searchQuery(filter).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxBookFull

	err = pgxscan.Select(ctx, storage.Conn(ctx, p.pg), &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Book, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.intoCommon())
	}

	return ret, nil
}

func (p *pgxRepo) searchQuery(filter Filter) *goqu.SelectDataset {
	qb := p.selectFull().
		Order(goqu.C("id").Asc())

	title := storage.EscapeLike(filter.Title)
	if title != "" {
		qb = qb.Where(goqu.C("title").ILike("%" + title + "%"))
	}

	if isbn := strings.TrimSpace(filter.Isbn); isbn != "" {
		qb = qb.Where(goqu.C("isbn").Eq(isbn))
	}

	if filter.Year != nil {
		qb = qb.Where(goqu.C("publication_year").Eq(*filter.Year))
	}

	if filter.AuthorId != nil {
		qb = qb.Where(goqu.C("id").In(
			goqu.Select("book_id").
				From("book_author").
				Where(goqu.C("author_id").Eq(*filter.AuthorId)),
		))
	}

	return qb
}

func (p *pgxRepo) Update(ctx context.Context, id int64, patch types.BookPatch) (*types.Book, error) {
	if !patch.HasFields() {
		return p.GetById(ctx, id)
	}

	set := goqu.Record{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Isbn != nil {
		set["isbn"] = *patch.Isbn
	}
	if patch.PublicationYear != nil {
		set["publication_year"] = *patch.PublicationYear
	}
	if patch.AvailableCopies != nil {
		set["available_copies"] = *patch.AvailableCopies
	}

	sql, params, err := p.g.Update("book").
		Set(set).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	tag, err := storage.Conn(ctx, p.pg).Exec(ctx, sql, params...)
	if err != nil {
		return nil, storage.TranslateError(err)
	}

	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	return p.GetById(ctx, id)
}

func (p *pgxRepo) DeleteById(ctx context.Context, id int64) (bool, error) {
	sql, params, err := p.g.Delete("book").
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return false, err
	}

	tag, err := storage.Conn(ctx, p.pg).Exec(ctx, sql, params...)
	if err != nil {
		return false, storage.TranslateError(err)
	}

	return tag.RowsAffected() > 0, nil
}

func (p *pgxRepo) Link(ctx context.Context, bookId, authorId int64) error {
	sql, params, err := p.g.Insert("book_author").
		Cols("book_id", "author_id", "author_order").
		FromQuery(goqu.From("book_author").
			Select(goqu.V(bookId), goqu.V(authorId), goqu.L("coalesce(max(author_order), 0) + 1")).
			Where(goqu.C("book_id").Eq(bookId))).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = storage.Conn(ctx, p.pg).Exec(ctx, sql, params...)
	return storage.TranslateError(err)
}

func (p *pgxRepo) Unlink(ctx context.Context, bookId, authorId int64) (bool, error) {
	sql, params, err := p.g.Delete("book_author").
		Where(goqu.C("book_id").Eq(bookId), goqu.C("author_id").Eq(authorId)).
		ToSQL()
	if err != nil {
		return false, err
	}

	tag, err := storage.Conn(ctx, p.pg).Exec(ctx, sql, params...)
	if err != nil {
		return false, storage.TranslateError(err)
	}

	return tag.RowsAffected() > 0, nil
}

func (p *pgxRepo) AuthorIds(ctx context.Context, bookId int64) ([]int64, error) {
	sql, params, err := p.g.From("book_author").
		Select("author_id").
		Where(goqu.C("book_id").Eq(bookId)).
		Order(goqu.C("author_order").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0)

	err = pgxscan.Select(ctx, storage.Conn(ctx, p.pg), &ids, sql, params...)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (p *pgxRepo) BookIds(ctx context.Context, authorId int64) ([]int64, error) {
	sql, params, err := p.g.From("book_author").
		Select("book_id").
		Where(goqu.C("author_id").Eq(authorId)).
		Order(goqu.C("book_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0)

	err = pgxscan.Select(ctx, storage.Conn(ctx, p.pg), &ids, sql, params...)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (p *pgxRepo) CountByAuthor(ctx context.Context, authorId int64) (int, error) {
	sql, params, err := p.g.From("book_author").
		Select(goqu.COUNT("*")).
		Where(goqu.C("author_id").Eq(authorId)).
		ToSQL()
	if err != nil {
		return 0, err
	}

	var count int

	err = storage.Conn(ctx, p.pg).QueryRow(ctx, sql, params...).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

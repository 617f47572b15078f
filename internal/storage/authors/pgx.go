package authors

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

var subBooks = goqu.Select(goqu.L("array_agg(book_id order by book_id)")).
	From("book_author").
	Where(goqu.C("author_id").Eq(goqu.C("id").Table("author")))

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxAuthor struct {
	Id        int64  `db:"id" goqu:"skipinsert"`
	Name      string `db:"name"`
	Country   string `db:"country"`
	BirthYear int    `db:"birth_year"`
}

type pgxAuthorFull struct {
	Base    pgxAuthor `db:""` // follow
	BookIds []int64   `db:"books"`
}

func (a *pgxAuthorFull) intoCommon() *types.Author {
	bookIds := a.BookIds
	if bookIds == nil {
		bookIds = make([]int64, 0)
	}

	return &types.Author{
		Id:        a.Base.Id,
		Name:      a.Base.Name,
		Country:   a.Base.Country,
		BirthYear: a.Base.BirthYear,
		BookIds:   bookIds,
	}
}

func (p *pgxRepo) selectFull() *goqu.SelectDataset {
	return p.g.From("author").
		Select("author.*", subBooks.As("books"))
}

func (p *pgxRepo) getOne(ctx context.Context, qb *goqu.SelectDataset) (*types.Author, error) {
	sql, params, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxAuthorFull

	err = pgxscan.Get(ctx, storage.Conn(ctx, p.pg), &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(), nil
}

func (p *pgxRepo) Insert(ctx context.Context, author *types.Author) (*types.Author, error) {
	sql, params, err := p.g.Insert("author").
		Rows(pgxAuthor{
			Name:      author.Name,
			Country:   author.Country,
			BirthYear: author.BirthYear,
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

	return &types.Author{
		Id:        id,
		Name:      author.Name,
		Country:   author.Country,
		BirthYear: author.BirthYear,
		BookIds:   make([]int64, 0),
	}, nil
}

func (p *pgxRepo) GetById(ctx context.Context, id int64) (*types.Author, error) {
	return p.getOne(ctx, p.selectFull().Where(goqu.C("id").Eq(id)))
}

func (p *pgxRepo) GetByName(ctx context.Context, name string) (*types.Author, error) {
	return p.getOne(ctx, p.selectFull().Where(goqu.C("name").Eq(name)))
}

func (p *pgxRepo) GetByIds(ctx context.Context, ids ...int64) (map[int64]*types.Author, error) {
	if len(ids) == 0 {
		return make(map[int64]*types.Author), nil
	}

	sql, params, err := p.selectFull().
		Where(goqu.C("id").In(ids)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxAuthorFull

	err = pgxscan.Select(ctx, storage.Conn(ctx, p.pg), &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make(map[int64]*types.Author, len(rows))
	for _, row := range rows {
		ret[row.Base.Id] = row.intoCommon()
	}

	return ret, nil
}

func (p *pgxRepo) Search(ctx context.Context, filter Filter) ([]*types.Author, error) {
	sql, params, err := p.searchQuery(filter).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxAuthorFull

	err = pgxscan.Select(ctx, storage.Conn(ctx, p.pg), &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Author, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.intoCommon())
	}

	return ret, nil
}

func (p *pgxRepo) searchQuery(filter Filter) *goqu.SelectDataset {
	qb := p.selectFull().
		Order(goqu.C("id").Asc())

	if country := strings.TrimSpace(filter.Country); country != "" {
		qb = qb.Where(goqu.L("lower(country)").Eq(strings.ToLower(country)))
	}

	if name := storage.EscapeLike(filter.Name); name != "" {
		qb = qb.Where(goqu.C("name").ILike("%" + name + "%"))
	}

	if filter.BirthYear != nil {
		qb = qb.Where(goqu.C("birth_year").Eq(*filter.BirthYear))
	}

	return qb
}

func (p *pgxRepo) Update(ctx context.Context, id int64, patch types.AuthorPatch) (*types.Author, error) {
	if patch.IsEmpty() {
		return p.GetById(ctx, id)
	}

	set := goqu.Record{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Country != nil {
		set["country"] = *patch.Country
	}
	if patch.BirthYear != nil {
		set["birth_year"] = *patch.BirthYear
	}

	sql, params, err := p.g.Update("author").
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
	sql, params, err := p.g.Delete("author").
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

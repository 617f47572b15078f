package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"library/internal/storage/authors"
	"library/internal/types"
)

type authorRepo struct {
	s *Store
}

func (r *authorRepo) Insert(ctx context.Context, author *types.Author) (*types.Author, error) {
	var ret *types.Author

	err := r.s.write(ctx, func(st *state) error {
		if st.nameTaken(author.Name, 0) {
			return duplicate("author_name_key")
		}

		a := types.Author{
			Id:        st.nextAuthorId,
			Name:      author.Name,
			Country:   author.Country,
			BirthYear: author.BirthYear,
		}
		st.nextAuthorId++
		st.authors[a.Id] = a

		ret = st.authorWithLinks(a)
		return nil
	})

	return ret, err
}

func (r *authorRepo) GetById(ctx context.Context, id int64) (ret *types.Author, _ error) {
	r.s.read(ctx, func(st *state) {
		if a, ok := st.authors[id]; ok {
			ret = st.authorWithLinks(a)
		}
	})

	return ret, nil
}

func (r *authorRepo) GetByIds(ctx context.Context, ids ...int64) (map[int64]*types.Author, error) {
	ret := make(map[int64]*types.Author, len(ids))

	r.s.read(ctx, func(st *state) {
		for _, id := range ids {
			if a, ok := st.authors[id]; ok {
				ret[id] = st.authorWithLinks(a)
			}
		}
	})

	return ret, nil
}

func (r *authorRepo) GetByName(ctx context.Context, name string) (ret *types.Author, _ error) {
	r.s.read(ctx, func(st *state) {
		for _, a := range st.authors {
			if a.Name == name {
				ret = st.authorWithLinks(a)
				return
			}
		}
	})

	return ret, nil
}

func (r *authorRepo) Search(ctx context.Context, filter authors.Filter) ([]*types.Author, error) {
	country := strings.TrimSpace(filter.Country)
	name := strings.ToLower(strings.TrimSpace(filter.Name))

	ret := make([]*types.Author, 0)

	r.s.read(ctx, func(st *state) {
		for _, a := range st.authors {
			if country != "" && !strings.EqualFold(a.Country, country) {
				continue
			}
			if name != "" && !strings.Contains(strings.ToLower(a.Name), name) {
				continue
			}
			if filter.BirthYear != nil && a.BirthYear != *filter.BirthYear {
				continue
			}
			ret = append(ret, st.authorWithLinks(a))
		}
	})

	slices.SortFunc(ret, func(a, b *types.Author) int {
		return cmp.Compare(a.Id, b.Id)
	})

	return ret, nil
}

func (r *authorRepo) Update(ctx context.Context, id int64, patch types.AuthorPatch) (*types.Author, error) {
	var ret *types.Author

	err := r.s.write(ctx, func(st *state) error {
		a, ok := st.authors[id]
		if !ok {
			return nil
		}

		patch.Apply(&a)
		if st.nameTaken(a.Name, id) {
			return duplicate("author_name_key")
		}
		st.authors[id] = a

		ret = st.authorWithLinks(a)
		return nil
	})

	return ret, err
}

func (r *authorRepo) DeleteById(ctx context.Context, id int64) (bool, error) {
	deleted := false

	err := r.s.write(ctx, func(st *state) error {
		if _, ok := st.authors[id]; !ok {
			return nil
		}

		if len(st.bookIdsOf(id)) > 0 {
			return foreignKey("book_author_author_id_fkey")
		}

		delete(st.authors, id)
		deleted = true
		return nil
	})

	return deleted, err
}

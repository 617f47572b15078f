package types

type Author struct {
	Id        int64   `json:"id"`
	Name      string  `json:"name" validate:"required,min=2,max=100"`
	Country   string  `json:"country" validate:"required,min=2,max=50"`
	BirthYear int     `json:"birth_year"`
	BookIds   []int64 `json:"book_ids"`
}

type Book struct {
	Id              int64   `json:"id"`
	Title           string  `json:"title" validate:"required,min=1,max=150"`
	Isbn            string  `json:"isbn"`
	PublicationYear int     `json:"publication_year" validate:"gt=0,lt=2100"`
	AvailableCopies int     `json:"available_copies"`
	AuthorIds       []int64 `json:"author_ids"`
}

// AuthorPatch holds the author fields an update changes. Nil fields keep their value.
type AuthorPatch struct {
	Name      *string
	Country   *string
	BirthYear *int
}

func (p AuthorPatch) IsEmpty() bool {
	return p.Name == nil && p.Country == nil && p.BirthYear == nil
}

func (p AuthorPatch) Apply(a *Author) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Country != nil {
		a.Country = *p.Country
	}
	if p.BirthYear != nil {
		a.BirthYear = *p.BirthYear
	}
}

// BookPatch holds the book fields an update changes. Nil fields keep their value.
//
// AuthorIds replaces the whole author list. It is applied through link records,
// so book repositories ignore it in Update.
type BookPatch struct {
	Title           *string
	Isbn            *string
	PublicationYear *int
	AvailableCopies *int
	AuthorIds       *[]int64
}

// HasFields reports whether the patch touches any column of the book itself.
func (p BookPatch) HasFields() bool {
	return p.Title != nil || p.Isbn != nil || p.PublicationYear != nil || p.AvailableCopies != nil
}

func (p BookPatch) IsEmpty() bool {
	return !p.HasFields() && p.AuthorIds == nil
}

func (p BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Isbn != nil {
		b.Isbn = *p.Isbn
	}
	if p.PublicationYear != nil {
		b.PublicationYear = *p.PublicationYear
	}
	if p.AvailableCopies != nil {
		b.AvailableCopies = *p.AvailableCopies
	}
	if p.AuthorIds != nil {
		b.AuthorIds = append([]int64(nil), (*p.AuthorIds)...)
	}
}

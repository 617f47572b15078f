// Package catalog publishes the book list as an OPDS 1 acquisition feed.
package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"

	"github.com/opds-community/libopds2-go/opds1"

	"library/internal/storage/books"
	"library/internal/types"
)

const (
	linkTypeAcquisition = "application/atom+xml;profile=opds-catalog;kind=acquisition"
	linkTypeJson        = "application/json"
)

type BookLister interface {
	List(ctx context.Context, filter books.Filter) ([]*types.Book, error)
}

type AuthorLookup interface {
	// GetByIds shall return map with NON-NULLS!
	GetByIds(ctx context.Context, ids ...int64) (map[int64]*types.Author, error)
}

type Builder struct {
	bs      BookLister
	ar      AuthorLookup
	baseURL string
}

// NewBuilder makes feeds whose links point below baseURL.
func NewBuilder(bs BookLister, ar AuthorLookup, baseURL string) *Builder {
	return &Builder{bs: bs, ar: ar, baseURL: baseURL}
}

func (b *Builder) Feed(ctx context.Context, filter books.Filter) (*opds1.Feed, error) {
	rows, err := b.bs.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	var authorIds []int64
	seen := make(map[int64]struct{})
	for _, book := range rows {
		for _, id := range book.AuthorIds {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				authorIds = append(authorIds, id)
			}
		}
	}

	as, err := b.ar.GetByIds(ctx, authorIds...)
	if err != nil {
		return nil, fmt.Errorf("fetching feed authors: %w", err)
	}

	return Build(rows, as, b.baseURL, selfHref(b.baseURL, filter)), nil
}

// Build renders books as feed entries. Authors missing from the map are left out
// of the entries.
func Build(rows []*types.Book, as map[int64]*types.Author, baseURL, self string) *opds1.Feed {
	feed := &opds1.Feed{
		ID:    "urn:library:books",
		Title: "Library catalog",
		Links: []opds1.Link{
			{Rel: "self", Href: self, TypeLink: linkTypeAcquisition},
			{Rel: "start", Href: baseURL + "/opds/books", TypeLink: linkTypeAcquisition},
		},
		Entries: make([]opds1.Entry, 0, len(rows)),
	}

	for _, book := range rows {
		entry := opds1.Entry{
			ID:     "urn:isbn:" + book.Isbn,
			Title:  book.Title,
			Issued: strconv.Itoa(book.PublicationYear),
			Links: []opds1.Link{
				{Rel: "alternate", Href: fmt.Sprintf("%s/api/books/%d", baseURL, book.Id), TypeLink: linkTypeJson},
			},
		}
		entry.Content.Content = fmt.Sprintf("%d copies available", book.AvailableCopies)

		for _, id := range book.AuthorIds {
			author, ok := as[id]
			if !ok {
				continue
			}
			entry.Author = append(entry.Author, opds1.Author{
				Name: author.Name,
				URI:  fmt.Sprintf("%s/api/authors/%d", baseURL, author.Id),
			})
		}

		feed.Entries = append(feed.Entries, entry)
	}

	return feed
}

func selfHref(baseURL string, filter books.Filter) string {
	q := url.Values{}
	if filter.Title != "" {
		q.Set("title", filter.Title)
	}
	if filter.AuthorId != nil {
		q.Set("author", strconv.FormatInt(*filter.AuthorId, 10))
	}

	href := baseURL + "/opds/books"
	if len(q) > 0 {
		href += "?" + q.Encode()
	}

	return href
}

type atomFeed struct {
	XMLName xml.Name `xml:"http://www.w3.org/2005/Atom feed"`
	*opds1.Feed
}

// Marshal encodes feed as an Atom document, xml declaration included.
func Marshal(feed *opds1.Feed) ([]byte, error) {
	bs, err := xml.MarshalIndent(atomFeed{Feed: feed}, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), bs...), nil
}

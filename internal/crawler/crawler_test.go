package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/catalog"
	"library/internal/library"
	"library/internal/response"
	"library/internal/seed"
	"library/internal/server"
	"library/internal/storage/memory"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLibrary() (*library.AuthorService, *library.BookService) {
	st := memory.NewStore()
	return library.NewAuthorService(st, st.Authors(), st.Books(), discard()),
		library.NewBookService(st, st.Authors(), st.Books(), discard())
}

// startSource serves a seeded library the way cmd/server does.
func startSource(t *testing.T) *httptest.Server {
	t.Helper()

	var h http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	st := memory.NewStore()
	as := library.NewAuthorService(st, st.Authors(), st.Books(), discard())
	bs := library.NewBookService(st, st.Authors(), st.Books(), discard())
	_, err := seed.Run(context.Background(), seed.Sample(), as, bs, discard())
	require.NoError(t, err)

	rr := &response.Responder{}
	r := chi.NewRouter()
	r.Mount("/api", server.Handler(as, bs, rr))
	r.Mount("/opds", server.OPDS(catalog.NewBuilder(bs, st.Authors(), srv.URL), rr))
	h = r

	return srv
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)

	return u
}

func TestCrawl_ImportsAnotherLibrary(t *testing.T) {
	src := startSource(t)
	as, bs := newLibrary()
	ctx := context.Background()

	c := &Crawler{Client: src.Client(), Logger: discard()}
	consumer := &StoringConsumer{Logger: discard(), Authors: as, Books: bs}

	require.NoError(t, c.Crawl(ctx, mustParse(t, src.URL+"/opds/books"), consumer))

	sample := seed.Sample()
	assert.Equal(t, Stats{AuthorsCreated: len(sample.Authors), BooksCreated: len(sample.Books)}, consumer.Stats)

	omens, err := bs.List(ctx, library.BookFilter{Isbn: "9780060853983"})
	require.NoError(t, err)
	require.Len(t, omens, 1)
	assert.Equal(t, "Good Omens", omens[0].Title)
	assert.Equal(t, 1990, omens[0].PublicationYear)
	assert.Equal(t, 0, omens[0].AvailableCopies)
	require.Len(t, omens[0].AuthorIds, 2)

	pratchett, err := as.Get(ctx, omens[0].AuthorIds[0])
	require.NoError(t, err)
	assert.Equal(t, "Terry Pratchett", pratchett.Name)
	assert.Equal(t, "UK", pratchett.Country)
	assert.Equal(t, 1948, pratchett.BirthYear)

	// A second run finds everything in place.
	consumer.Stats = Stats{}
	require.NoError(t, c.Crawl(ctx, mustParse(t, src.URL+"/opds/books"), consumer))
	assert.Equal(t, Stats{Skipped: len(sample.Books)}, consumer.Stats)
}

const pageTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:dc="http://purl.org/dc/terms/">
  <id>urn:test:%[1]s</id>
  <title>Page %[1]s</title>
  %[2]s
  %[3]s
</feed>`

func page(name, next, entries string) string {
	link := ""
	if next != "" {
		link = `<link rel="next" href="` + next + `" type="application/atom+xml;profile=opds-catalog;kind=acquisition"/>`
	}

	return fmt.Sprintf(pageTemplate, name, link, entries)
}

func entry(id, title, issued, content, authors string) string {
	return `<entry><id>` + id + `</id><title>` + title + `</title><dc:issued>` + issued + `</dc:issued>` +
		authors + `<content type="text">` + content + `</content></entry>`
}

type recordingConsumer struct {
	pages [][]*FeedBook
}

func (c *recordingConsumer) ConsumeBooks(_ context.Context, books []*FeedBook, _ AuthorFetcher) error {
	c.pages = append(c.pages, books)
	return nil
}

func TestCrawl_FollowsNextLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			_, _ = io.WriteString(w, page("2", "", entry("urn:isbn:0140449132", "Crime and Punishment", "1866", "", "")))
			return
		}
		_, _ = io.WriteString(w, page("1", "/feed?page=2",
			entry("urn:isbn:9780140439083", " A Study in Scarlet ", "1887-11", "3 copies available",
				`<author><name>Arthur Conan Doyle</name><uri>http://x.test/a/1</uri></author>`)+
				entry("tag:book:17", "Not a book with isbn", "2000", "", "")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Crawler{Client: srv.Client(), Logger: discard()}
	rec := &recordingConsumer{}

	require.NoError(t, c.Crawl(context.Background(), mustParse(t, srv.URL+"/feed"), rec))

	require.Len(t, rec.pages, 2)
	assert.Equal(t, []*FeedBook{{
		Isbn:    "9780140439083",
		Title:   "A Study in Scarlet",
		Year:    1887,
		Copies:  3,
		Authors: []FeedAuthor{{Name: "Arthur Conan Doyle", URI: "http://x.test/a/1"}},
	}}, rec.pages[0])
	assert.Equal(t, []*FeedBook{{Isbn: "0140449132", Title: "Crime and Punishment", Year: 1866}}, rec.pages[1])
}

func TestCrawl_StopsOnLoopAndLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, page("loop", "/loop", ""))
	})
	mux.HandleFunc("/endless", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		_, _ = io.WriteString(w, page("endless", fmt.Sprintf("/endless?n=%d", n+1), ""))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Crawler{Client: srv.Client(), Logger: discard(), MaxPages: 3}

	rec := &recordingConsumer{}
	require.NoError(t, c.Crawl(context.Background(), mustParse(t, srv.URL+"/loop"), rec))
	assert.Len(t, rec.pages, 1)

	rec = &recordingConsumer{}
	require.NoError(t, c.Crawl(context.Background(), mustParse(t, srv.URL+"/endless"), rec))
	assert.Len(t, rec.pages, 3)
}

func TestCrawl_FeedErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<feed><entry>")
	})
	mux.HandleFunc("/missing", http.NotFound)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Crawler{Client: srv.Client(), Logger: discard()}

	err := c.Crawl(context.Background(), mustParse(t, srv.URL+"/broken"), &recordingConsumer{})
	assert.ErrorContains(t, err, "unmarshalling feed")

	err = c.Crawl(context.Background(), mustParse(t, srv.URL+"/missing"), &recordingConsumer{})
	assert.ErrorContains(t, err, "404")
}

func TestCrawl_RejectsOversizedPage(t *testing.T) {
	body := page("big", "", entry("urn:isbn:0140449132", "Crime and Punishment", "1866", "", ""))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	rec := &recordingConsumer{}

	c := &Crawler{Client: srv.Client(), Logger: discard(), MaxBodySize: int64(len(body)) - 1}
	err := c.Crawl(context.Background(), mustParse(t, srv.URL), rec)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, rec.pages)

	// exactly at the limit is fine
	c.MaxBodySize = int64(len(body))
	require.NoError(t, c.Crawl(context.Background(), mustParse(t, srv.URL), rec))
	assert.Len(t, rec.pages, 1)
}

func TestStoringConsumer_SkipsUnresolvableAuthors(t *testing.T) {
	as, bs := newLibrary()
	ctx := context.Background()

	_, err := as.Create(ctx, library.NewAuthor{Name: "Known Author", Country: "UK", BirthYear: 1900})
	require.NoError(t, err)

	consumer := &StoringConsumer{Logger: discard(), Authors: as, Books: bs}
	fetch := (&Crawler{Client: http.DefaultClient, Logger: discard()}).fetchAuthor

	err = consumer.ConsumeBooks(ctx, []*FeedBook{
		{Isbn: "1111111111", Title: "Known", Year: 1950, Authors: []FeedAuthor{{Name: "Known Author"}}},
		{Isbn: "2222222222", Title: "Orphan", Year: 1950, Authors: []FeedAuthor{{Name: "Nobody Links Me"}}},
		{Isbn: "3333333333", Title: "No year", Authors: nil},
	}, fetch)
	require.NoError(t, err)

	assert.Equal(t, Stats{BooksCreated: 1, Skipped: 2}, consumer.Stats)

	rows, err := bs.List(ctx, library.BookFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1111111111", rows[0].Isbn)
}

func TestRemoveDisallowedCodepoints(t *testing.T) {
	got := removeDisallowedCodepoints([]byte("<t>a\x01b\x0bc</t>"), discard())
	assert.Equal(t, "<t>abc</t>", string(got))

	invalid := []byte("<t>\xff</t>")
	assert.Equal(t, invalid, removeDisallowedCodepoints(invalid, discard()))
}

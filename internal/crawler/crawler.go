// Package crawler imports books from OPDS acquisition feeds, such as the one
// served under /opds/books by another instance of the library.
package crawler

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/opds-community/libopds2-go/opds1"

	"library/internal/types"
)

const (
	linkTypeCatalog = "application/atom+xml;profile=opds-catalog"
	linkRelNext     = "next"

	defaultMaxPages    = 100
	defaultMaxBodySize = 16 << 20
)

var (
	regIdIsbn   = regexp.MustCompile(`^urn:isbn:(\d{10}|\d{13})$`)
	regYear     = regexp.MustCompile(`^(\d{1,4})`)
	regCopies   = regexp.MustCompile(`^(\d+) cop(?:y|ies) available`)
	ErrNoAuthor = errors.New("author has no link to its record")
	ErrTooLarge = errors.New("response too large")
)

// FeedBook is a book as it was found in a feed.
type FeedBook struct {
	Isbn    string
	Title   string
	Year    int
	Copies  int
	Authors []FeedAuthor
}

type FeedAuthor struct {
	Name string
	URI  string
}

// AuthorFetcher resolves a feed author to a full author record.
type AuthorFetcher func(ctx context.Context, a FeedAuthor) (*types.Author, error)

type Crawler struct {
	Client *http.Client
	Logger *slog.Logger
	// MaxPages limits how many "next" links are followed. Zero means 100.
	MaxPages int
	// MaxBodySize bounds a single response. Zero means 16 MiB.
	MaxBodySize int64
}

// Crawl walks feed and every page reachable through its "next" links, handing
// each page's books to consumer. Pages are visited once.
func (c *Crawler) Crawl(ctx context.Context, feed *url.URL, consumer Consumer) error {
	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	visited := make(map[string]struct{})
	page := feed

	for n := 0; page != nil; n++ {
		if n == maxPages {
			c.Logger.Warn("Stop following feed pages, limit reached", slog.Int("pages", n))
			return nil
		}

		key := page.String()
		if _, ok := visited[key]; ok {
			c.Logger.Warn("Feed pages loop back to " + key)
			return nil
		}
		visited[key] = struct{}{}

		l := c.Logger.With(slog.String("feed", key))

		f, err := c.fetchFeed(ctx, page, l)
		if err != nil {
			return err
		}

		books := make([]*FeedBook, 0, len(f.Entries))
		for _, entry := range f.Entries {
			b, err := bookFromEntry(&entry)
			if err != nil {
				l.Warn("Skip entry "+strings.TrimSpace(entry.ID)+": "+err.Error(), slog.String("title", entry.Title))
				continue
			}
			books = append(books, b)
		}

		l.Debug("Parsed feed page", slog.Int("entries", len(f.Entries)), slog.Int("books", len(books)))

		if err := consumer.ConsumeBooks(ctx, books, c.fetchAuthor); err != nil {
			return fmt.Errorf("consuming books of %s: %w", key, err)
		}

		page, err = nextPage(page, f.Links, l)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Crawler) fetchFeed(ctx context.Context, page *url.URL, l *slog.Logger) (*opds1.Feed, error) {
	bs, err := c.get(ctx, page, linkTypeCatalog)
	if err != nil {
		l.Error("Failed to fetch feed: " + err.Error())
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	var feed opds1.Feed
	if err := xml.Unmarshal(removeDisallowedCodepoints(bs, l), &feed); err != nil {
		l.Error("Failed to unmarshal feed: " + err.Error())
		return nil, fmt.Errorf("unmarshalling feed: %w", err)
	}

	return &feed, nil
}

func (c *Crawler) fetchAuthor(ctx context.Context, a FeedAuthor) (*types.Author, error) {
	if a.URI == "" {
		return nil, fmt.Errorf("%s: %w", a.Name, ErrNoAuthor)
	}

	u, err := url.Parse(a.URI)
	if err != nil {
		return nil, fmt.Errorf("parsing author link %s: %w", a.URI, err)
	}

	bs, err := c.get(ctx, u, "application/json")
	if err != nil {
		return nil, fmt.Errorf("fetching author %s: %w", a.Name, err)
	}

	var author types.Author
	if err := json.Unmarshal(bs, &author); err != nil {
		return nil, fmt.Errorf("decoding author %s: %w", a.Name, err)
	}

	return &author, nil
}

func (c *Crawler) get(ctx context.Context, u *url.URL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}

	limit := c.MaxBodySize
	if limit <= 0 {
		limit = defaultMaxBodySize
	}

	bs, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(bs)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}

	return bs, nil
}

func bookFromEntry(e *opds1.Entry) (*FeedBook, error) {
	m := regIdIsbn.FindStringSubmatch(strings.TrimSpace(e.ID))
	if m == nil {
		return nil, errors.New("id is not an isbn urn")
	}

	b := &FeedBook{
		Isbn:  m[1],
		Title: strings.TrimSpace(e.Title),
	}

	if m := regYear.FindStringSubmatch(strings.TrimSpace(e.Issued)); m != nil {
		b.Year, _ = strconv.Atoi(m[1])
	}

	if m := regCopies.FindStringSubmatch(strings.TrimSpace(e.Content.Content)); m != nil {
		b.Copies, _ = strconv.Atoi(m[1])
	}

	for _, a := range e.Author {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		b.Authors = append(b.Authors, FeedAuthor{Name: name, URI: strings.TrimSpace(a.URI)})
	}

	return b, nil
}

func nextPage(page *url.URL, links []opds1.Link, l *slog.Logger) (*url.URL, error) {
	link := chooseLink(links, func(link *opds1.Link) string {
		if link.Rel != linkRelNext {
			return "not next: " + link.Rel
		}
		if !strings.HasPrefix(link.TypeLink, linkTypeCatalog) {
			return "unknown type: " + link.TypeLink
		}

		return ""
	}, clLogger{logger: l})

	if link == nil {
		return nil, nil
	}

	next, err := url.Parse(strings.TrimSpace(link.Href))
	if err != nil {
		l.Error("Failed to parse next page link " + link.Href + ": " + err.Error())
		return nil, fmt.Errorf("parsing next page link: %w", err)
	}

	return page.ResolveReference(next), nil
}

type clLogger struct {
	logger        *slog.Logger
	levelSkipLink slog.Leveler
}

func chooseLink(links []opds1.Link, matcher func(link *opds1.Link) string, l clLogger) *opds1.Link {
	var ret *opds1.Link

	for _, link := range links {
		link.Rel = strings.TrimSpace(link.Rel)
		link.TypeLink = strings.TrimSpace(link.TypeLink)

		if matcher != nil {
			mismatch := matcher(&link)
			if mismatch != "" {
				if l.levelSkipLink != nil {
					l.logger.LogAttrs(context.Background(), l.levelSkipLink.Level(), "Skip non-matching link: "+mismatch)
				}

				continue
			}
		}

		if ret != nil {
			l.logger.Warn("Skip duplicate matching link: " + link.Href)
			continue
		}

		ret = &link
	}

	return ret
}

// Some catalogs put characters into their feeds that XML does not allow.
func removeDisallowedCodepoints(bs []byte, l *slog.Logger) []byte {
	ret := bs[:0]
	buf := bs

	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size == 1 {
			l.Warn("Going to fail XML parsing because the bytes do not represent valid UTF8")
			return bs
		}

		if isInCharacterRange(r) {
			ret = append(ret, buf[:size]...)
		} else {
			l.Warn("Removed invalid rune from XML")
		}

		buf = buf[size:]
	}

	return ret
}

// Decide whether the given rune is in the XML Character Range, per
// the Char production of https://www.xml.com/axml/testaxml.htm,
// Section 2.2 Characters.
func isInCharacterRange(r rune) (inrange bool) {
	return r == 0x09 ||
		r == 0x0A ||
		r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

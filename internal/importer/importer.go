// Package importer reads OPDS 1 acquisition feeds and turns their entries into catalog books.
package importer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/opds-community/libopds2-go/opds1"

	"bookcatalog/internal/types"
)

const (
	linkRelImage = "http://opds-spec.org/image"
	linkRelNext  = "next"

	DefaultMaxPages = 20
)

var (
	regLinkTypeImage = regexp.MustCompile("^image/[^/]+$")
	regIdISBN        = regexp.MustCompile(`^urn:isbn:([0-9-]{10,17})$`)
	regYear          = regexp.MustCompile(`^\d{4}$`)
)

// Consumer receives the books of each feed page as soon as the page is parsed.
type Consumer interface {
	ConsumeBooks(ctx context.Context, books []types.BookFields) error
}

type ConsumerFunc func(ctx context.Context, books []types.BookFields) error

func (f ConsumerFunc) ConsumeBooks(ctx context.Context, books []types.BookFields) error {
	return f(ctx, books)
}

type Importer struct {
	Client   *http.Client
	Logger   *slog.Logger
	MaxPages int
}

// Crawl walks the feed and its rel="next" pages, handing every page's books to consumer.
func (im *Importer) Crawl(ctx context.Context, feed *url.URL, consumer Consumer) error {
	maxPages := im.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	seen := make(map[string]struct{})

	for page := 1; feed != nil; page++ {
		if page > maxPages {
			im.Logger.WarnContext(ctx, "Stopping import at page limit", slog.Int("pages", maxPages))
			return nil
		}

		f, err := im.fetch(ctx, feed)
		if err != nil {
			return err
		}

		l := im.Logger.With(slog.String("feed", feed.String()))

		bks := parseEntries(f, feed, seen, l)
		if len(bks) == 0 {
			l.WarnContext(ctx, "No books parsed from feed")
		} else if err := consumer.ConsumeBooks(ctx, bks); err != nil {
			return fmt.Errorf("failed to consume books: %w", err)
		}

		feed = nextPage(f, feed, l)
	}

	return nil
}

// Fetch collects the books of the whole feed.
func (im *Importer) Fetch(ctx context.Context, feed *url.URL) ([]types.BookFields, error) {
	var all []types.BookFields
	err := im.Crawl(ctx, feed, ConsumerFunc(func(_ context.Context, bks []types.BookFields) error {
		all = append(all, bks...)
		return nil
	}))
	return all, err
}

func (im *Importer) fetch(ctx context.Context, feed *url.URL) (*opds1.Feed, error) {
	im.Logger.DebugContext(ctx, "Begin processing feed "+feed.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	res, err := im.Client.Do(req)
	if err != nil {
		im.Logger.ErrorContext(ctx, "Failed to fetch feed "+feed.String()+": "+err.Error())
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	var bs []byte
	func() {
		defer res.Body.Close()
		bs, err = io.ReadAll(res.Body)
	}()

	if err != nil {
		im.Logger.ErrorContext(ctx, "Failed to read body of feed "+feed.String()+": "+err.Error())
		return nil, fmt.Errorf("fetching feed (reading response): %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching feed: unexpected status %s", res.Status)
	}

	l := im.Logger.With(slog.String("feed", feed.String()))

	var f opds1.Feed
	if err := xml.Unmarshal(removeDisallowedCodepoints(bs, l), &f); err != nil {
		im.Logger.ErrorContext(ctx, "Failed to unmarshal feed "+feed.String()+": "+err.Error())
		return nil, fmt.Errorf("unmarshalling feed: %w", err)
	}

	return &f, nil
}

func parseEntries(f *opds1.Feed, base *url.URL, seen map[string]struct{}, l *slog.Logger) []types.BookFields {
	var bks []types.BookFields

	for _, entry := range f.Entries {
		entry.ID = strings.TrimSpace(entry.ID)

		m := regIdISBN.FindStringSubmatch(entry.ID)
		if len(m) == 0 {
			l.Warn("Skipping entry without ISBN " + entry.ID)
			continue
		}
		isbn := strings.ReplaceAll(m[1], "-", "")

		title := strings.TrimSpace(entry.Title)
		if title == "" {
			l.Warn("Skipping entry without title " + entry.ID)
			continue
		}

		if _, ok := seen[isbn]; ok {
			l.Warn("Found duplicate of book " + entry.ID)
			continue
		}
		seen[isbn] = struct{}{}

		bks = append(bks, types.BookFields{
			Title:           title,
			Author:          authors(&entry),
			ISBN:            isbn,
			PublicationDate: issued(entry.Issued, entry.ID, l),
			Description:     strings.TrimSpace(entry.Content.Content),
			CoverImage:      cover(&entry, base, l),
			Genre:           genre(&entry),
		})
	}

	return bks
}

func authors(entry *opds1.Entry) string {
	names := make([]string, 0, len(entry.Author))
	seen := make(map[string]struct{}, len(entry.Author))

	for _, a := range entry.Author {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(name)]; ok {
			continue
		}
		seen[strings.ToLower(name)] = struct{}{}
		names = append(names, name)
	}

	return strings.Join(names, ", ")
}

func genre(entry *opds1.Entry) string {
	for _, c := range entry.Category {
		if term := strings.TrimSpace(c.Term); term != "" {
			return term
		}
	}
	return ""
}

// issued accepts a bare year or a full date.
func issued(s, id string, l *slog.Logger) types.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.Date{}
	}

	if regYear.MatchString(s) {
		t, err := time.Parse("2006", s)
		if err == nil {
			return types.NewDate(t.Year(), time.January, 1)
		}
	}

	d, err := types.ParseDate(s)
	if err != nil {
		l.Error("Failed to parse book " + id + " issue date: " + err.Error())
		return types.Date{}
	}
	return d
}

func cover(entry *opds1.Entry, base *url.URL, l *slog.Logger) string {
	link := chooseLink(entry, func(link *opds1.Link) string {
		if link.Rel != linkRelImage {
			return "unknown rel: " + link.Rel
		}

		if !regLinkTypeImage.MatchString(link.TypeLink) {
			return "unknown type: " + link.TypeLink
		}

		return ""
	}, clLogger{logger: l.With(slog.String("entry", entry.ID))})

	if link == nil {
		l.Info("Not found book cover link " + entry.ID)
		return ""
	}

	u, err := url.Parse(link.Href)
	if err != nil {
		l.Error("Failed to parse cover link " + entry.ID + ": " + err.Error())
		return ""
	}

	return base.ResolveReference(u).String()
}

func nextPage(f *opds1.Feed, current *url.URL, l *slog.Logger) *url.URL {
	link := chooseLink(&opds1.Entry{Links: f.Links}, func(link *opds1.Link) string {
		if link.Rel != linkRelNext {
			return "unknown rel " + link.Rel
		}
		return ""
	}, clLogger{logger: l})

	if link == nil {
		return nil
	}

	u, err := url.Parse(link.Href)
	if err != nil {
		l.Error("Failed to parse next page link " + link.Href + ": " + err.Error())
		return nil
	}

	l.Debug("Found link to the next page")
	return current.ResolveReference(u)
}

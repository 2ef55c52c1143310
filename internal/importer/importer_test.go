package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcatalog/internal/types"
)

const page1 = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:dcterms="http://purl.org/dc/terms/">
  <id>urn:catalog:root</id>
  <title>Catalog` + "\x01" + `</title>
  <link rel="next" href="/feed?page=2" type="application/atom+xml;profile=opds-catalog;kind=acquisition"/>
  <entry>
    <title> Clean Code </title>
    <id>urn:isbn:978-0132350884</id>
    <author><name>Robert C. Martin</name></author>
    <dcterms:issued>2008-08-01</dcterms:issued>
    <category term="Programming" label="Programming"/>
    <content type="text">Even bad code can function.</content>
    <link rel="http://opds-spec.org/image" href="/covers/clean-code.jpg" type="image/jpeg"/>
    <link rel="http://opds-spec.org/acquisition" href="/books/clean-code.epub" type="application/epub+zip"/>
  </entry>
  <entry>
    <title>No ISBN here</title>
    <id>tag:book:42</id>
  </entry>
</feed>`

const page2 = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:dcterms="http://purl.org/dc/terms/">
  <id>urn:catalog:root:2</id>
  <title>Catalog</title>
  <entry>
    <title>Algorithms to Live By</title>
    <id>urn:isbn:9781627790369</id>
    <author><name>Brian Christian</name></author>
    <author><name>Tom Griffiths</name></author>
    <dcterms:issued>2016</dcterms:issued>
  </entry>
  <entry>
    <title>Clean Code (again)</title>
    <id>urn:isbn:9780132350884</id>
  </entry>
</feed>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		if r.URL.Query().Get("page") == "2" {
			_, _ = io.WriteString(w, page2)
			return
		}
		_, _ = io.WriteString(w, page1)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newImporter(srv *httptest.Server) *Importer {
	return &Importer{
		Client: srv.Client(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestFetch_FollowsPagesAndMapsEntries(t *testing.T) {
	srv := newServer(t)
	feed, err := url.Parse(srv.URL + "/feed")
	require.NoError(t, err)

	bks, err := newImporter(srv).Fetch(context.Background(), feed)
	require.NoError(t, err)
	require.Len(t, bks, 2)

	assert.Equal(t, types.BookFields{
		Title:           "Clean Code",
		Author:          "Robert C. Martin",
		ISBN:            "9780132350884",
		PublicationDate: types.NewDate(2008, time.August, 1),
		Description:     "Even bad code can function.",
		CoverImage:      srv.URL + "/covers/clean-code.jpg",
		Genre:           "Programming",
	}, bks[0])

	assert.Equal(t, "Brian Christian, Tom Griffiths", bks[1].Author)
	assert.Equal(t, types.NewDate(2016, time.January, 1), bks[1].PublicationDate)
	assert.Empty(t, bks[1].CoverImage)
}

func TestCrawl_PageLimitAndConsumerErrors(t *testing.T) {
	srv := newServer(t)
	feed, _ := url.Parse(srv.URL + "/feed")

	im := newImporter(srv)
	im.MaxPages = 1

	pages := 0
	err := im.Crawl(context.Background(), feed, ConsumerFunc(func(context.Context, []types.BookFields) error {
		pages++
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	boom := errors.New("boom")
	err = im.Crawl(context.Background(), feed, ConsumerFunc(func(context.Context, []types.BookFields) error {
		return boom
	}))
	assert.ErrorIs(t, err, boom)
}

func TestFetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	feed, _ := url.Parse(srv.URL)
	_, err := newImporter(srv).Fetch(context.Background(), feed)
	assert.ErrorContains(t, err, "unexpected status")
}

func TestRemoveDisallowedCodepoints(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Equal(t, []byte("a\tb"), removeDisallowedCodepoints([]byte("a\x01\tb\x1f"), l))

	invalid := []byte{'a', 0xff}
	assert.Equal(t, invalid, removeDisallowedCodepoints(invalid, l))
}

type fakeCatalog struct {
	got    []types.BookFields
	accept int
	err    error
}

func (c *fakeCatalog) Import(_ context.Context, fields ...types.BookFields) ([]*types.Book, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.got = append(c.got, fields...)

	out := make([]*types.Book, 0, c.accept)
	for ix := range min(c.accept, len(fields)) {
		out = append(out, &types.Book{Id: int64(ix + 1), BookFields: fields[ix]})
	}
	return out, nil
}

func TestStoringConsumer(t *testing.T) {
	srv := newServer(t)
	feed, _ := url.Parse(srv.URL + "/feed")
	im := newImporter(srv)

	cat := &fakeCatalog{accept: 1}
	consumer := &StoringConsumer{Logger: im.Logger, Catalog: cat}

	require.NoError(t, im.Crawl(context.Background(), feed, consumer))
	assert.Len(t, cat.got, 2)
	assert.Equal(t, 2, consumer.Stored)

	failing := &StoringConsumer{Logger: im.Logger, Catalog: &fakeCatalog{err: errors.New("db down")}}
	assert.ErrorContains(t, im.Crawl(context.Background(), feed, failing), "db down")

	assert.NoError(t, (&LoggerConsumer{Logger: im.Logger}).ConsumeBooks(context.Background(), cat.got))
}

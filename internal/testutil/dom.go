package testutil

import (
	"bytes"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// ParseHTML parses body into a goquery document, failing the test on malformed input.
func ParseHTML(t testing.TB, body []byte) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	require.NoError(t, err, "parse html")
	return doc
}

// Document parses the response body as HTML.
func (r Response) Document(t testing.TB) *goquery.Document {
	t.Helper()
	return ParseHTML(t, r.Body)
}

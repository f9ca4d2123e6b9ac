package provider

import (
	"context"
	"net/http"
	"testing"
)

func TestBodyFetcherPrefersArticleParagraphs(t *testing.T) {
	f := NewBodyFetcher(testTracer, 0)
	f.client = stubClient(http.StatusOK, `<html><body>
<nav><p>Home</p></nav>
<article><p>Tata Motors reported record sales.</p><p>  Shares rose 4%. </p></article>
<footer><p>Copyright</p></footer>
</body></html>`)

	body, err := f.FetchBody(context.Background(), "http://example/story")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "Tata Motors reported record sales.\n\nShares rose 4%." {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestBodyFetcherCapsLength(t *testing.T) {
	f := NewBodyFetcher(testTracer, 5)
	f.client = stubClient(http.StatusOK, `<p>abcdefghij</p>`)

	body, err := f.FetchBody(context.Background(), "http://example/story")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "abcde" {
		t.Fatalf("expected capped body, got %q", body)
	}
}

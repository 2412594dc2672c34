package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChunkTextParagraphBoundaries(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	chunks := ChunkText(text, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 50 {
			t.Errorf("chunk exceeds limit: %d chars", len(c))
		}
		if strings.HasPrefix(c, " ") || strings.HasSuffix(c, " ") {
			t.Errorf("chunk not trimmed: %q", c)
		}
	}
}

func TestChunkTextPacksSmallParagraphs(t *testing.T) {
	text := "One.\n\nTwo.\n\nThree."
	chunks := ChunkText(text, 1000)
	if len(chunks) != 1 {
		t.Fatalf("expected small paragraphs packed into one chunk, got %d", len(chunks))
	}
	if chunks[0] != "One.\n\nTwo.\n\nThree." {
		t.Errorf("unexpected chunk: %q", chunks[0])
	}
}

func TestChunkTextSplitsOversizedParagraph(t *testing.T) {
	text := strings.Repeat("word ", 1000) // one 5000-char paragraph
	chunks := ChunkText(text, 2000)
	if len(chunks) < 3 {
		t.Fatalf("expected hard split into >=3 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 2000 {
			t.Errorf("chunk exceeds limit: %d chars", len(c))
		}
	}
}

func TestChunkTextDropsDuplicates(t *testing.T) {
	text := "Repeated block.\n\nRepeated block.\n\nUnique block."
	chunks := ChunkText(text, 20)
	count := 0
	for _, c := range chunks {
		if c == "Repeated block." {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate chunk survived: %d copies", count)
	}
}

func TestExtractWithGoqueryFallback(t *testing.T) {
	html := `<html><head><script>evil()</script></head><body>
		<nav>menu menu</nav>
		<h1>The Harbor Treaty</h1>
		<p>Signed in the third year of the crisis.</p>
		<footer>copyright</footer>
	</body></html>`
	text, err := extractWithGoquery(html)
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if !strings.Contains(text, "The Harbor Treaty") || !strings.Contains(text, "Signed in the third year") {
		t.Errorf("content missing: %q", text)
	}
	if strings.Contains(text, "menu") || strings.Contains(text, "copyright") || strings.Contains(text, "evil") {
		t.Errorf("chrome not stripped: %q", text)
	}
}

func TestExtractWithGoqueryEmptyPage(t *testing.T) {
	if _, err := extractWithGoquery("<html><body><div>   </div></body></html>"); err == nil {
		t.Error("expected error for page with no extractable text")
	}
}

func TestFetchArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Treaty</title></head><body>
			<article><h1>The Harbor Treaty</h1>
			<p>`+strings.Repeat("A long paragraph about the treaty terms. ", 20)+`</p>
			</article></body></html>`)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	text, err := FetchArticle(context.Background(), client, srv.URL)
	if err != nil {
		t.Fatalf("FetchArticle failed: %v", err)
	}
	if !strings.Contains(text, "treaty terms") {
		t.Errorf("article text missing: %q", text)
	}
}

func TestFetchArticleHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	if _, err := FetchArticle(context.Background(), client, srv.URL); err == nil {
		t.Error("expected error for 404 page")
	}
}

package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const (
	fetchUserAgent = "Mozilla/5.0 (compatible; undergame-ingest/1.0)"
	maxFetchBytes  = 8 * 1024 * 1024
)

// FetchArticle downloads a page and extracts its readable text. Readability
// does the heavy lifting; when it yields nothing useful (index pages, odd
// markup) a goquery pass over paragraph and heading tags fills in.
func FetchArticle(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, pageURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, nil
	}
	return extractWithGoquery(string(data))
}

func extractWithGoquery(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, footer, aside").Remove()

	var parts []string
	doc.Find("p, h1, h2, h3, h4").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return "", fmt.Errorf("no extractable text found")
	}
	return strings.Join(parts, "\n\n"), nil
}

// ChunkText splits text into chunks of at most maxChars, preferring
// paragraph boundaries. Exact duplicates are dropped.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = 2000
	}

	var chunks []string
	seen := make(map[string]bool)
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		if chunk == "" || seen[chunk] {
			return
		}
		seen[chunk] = true
		chunks = append(chunks, chunk)
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// Oversized paragraph: hard-split on its own.
		if len(para) > maxChars {
			flush()
			for len(para) > maxChars {
				cut := strings.LastIndex(para[:maxChars], " ")
				if cut <= 0 {
					cut = maxChars
				}
				current.WriteString(para[:cut])
				flush()
				para = strings.TrimSpace(para[cut:])
			}
			current.WriteString(para)
			flush()
			continue
		}

		if current.Len()+len(para)+2 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

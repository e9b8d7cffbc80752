package drafts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

const (
	maxBriefBytes = 2 << 20 // uploaded PDFs and fetched pages
	fetchTimeout  = 10 * time.Second
)

// TextFromPDF extracts the plain text of a PDF brief.
func TextFromPDF(data []byte) (string, error) {
	if len(data) > maxBriefBytes {
		return "", fmt.Errorf("pdf too large (%d bytes, max %d)", len(data), maxBriefBytes)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, content); err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	return collapseWhitespace(buf.String()), nil
}

// TextFromURL fetches a page and strips its markup down to readable text.
func TextFromURL(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching brief: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching brief: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBriefBytes))
	if err != nil {
		return "", fmt.Errorf("reading brief: %w", err)
	}
	return StripHTML(string(body)), nil
}

// StripHTML reduces an HTML document to its visible text. Script and style
// contents are dropped.
func StripHTML(doc string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	var buf strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseWhitespace(buf.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				buf.Write(tokenizer.Text())
				buf.WriteByte(' ')
			}
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

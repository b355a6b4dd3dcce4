// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Fetcher downloads a URL and reduces it to indexable plain text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limit     int
}

// NewFetcher constructs a fetcher. limit caps the bytes kept after HTML
// stripping; zero means 32 KiB.
func NewFetcher(client *http.Client, cfg types.HTTPConfig, limit int) *Fetcher {
	if limit <= 0 {
		limit = 32 * 1024
	}
	return &Fetcher{client: client, userAgent: cfg.UserAgent, limit: limit}
}

// Fetch downloads the URL, strips HTML to plain text, and truncates to
// the configured limit.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty fetch URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := httputil.Do(ctx, f.client, req, 0)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", rawURL, resp.StatusCode)
	}

	// Read at most 4x the text limit of raw HTML; markup inflates pages
	// well beyond their text content.
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.limit)*4))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", rawURL, err)
	}

	text := StripHTML(string(body))
	if len(text) > f.limit {
		text = text[:f.limit]
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content at %s", rawURL)
	}
	return text, nil
}

var (
	reScript     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reNav        = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	reHeader     = regexp.MustCompile(`(?is)<header[^>]*>.*?</header>`)
	reFooter     = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	reTags       = regexp.MustCompile(`<[^>]+>`)
	reWhitespace = regexp.MustCompile(`[ \t]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// StripHTML removes scripts, styles, and chrome elements, then all tags,
// and normalizes whitespace.
func StripHTML(html string) string {
	s := reScript.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reNav.ReplaceAllString(s, "")
	s = reHeader.ReplaceAllString(s, "")
	s = reFooter.ReplaceAllString(s, "")
	s = reTags.ReplaceAllString(s, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	s = r.Replace(s)

	s = reWhitespace.ReplaceAllString(s, " ")
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	s = strings.Join(out, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

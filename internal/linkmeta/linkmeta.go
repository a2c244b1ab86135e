// Package linkmeta fetches display metadata (title, host, preview image) for
// web links.
package linkmeta

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dmitrijs2005/boardkeeper/internal/common"
)

const (
	maxPageBytes  = 2 << 20
	maxImageBytes = 5 << 20
	userAgent     = "boardkeeper-linkmeta/1.0"
)

type Metadata struct {
	URL          string
	Host         string
	Title        string
	PreviewImage []byte
}

// DisplayName returns the title, or the host when the page had none.
func (m Metadata) DisplayName() string {
	if t := strings.TrimSpace(m.Title); t != "" {
		return t
	}
	return m.Host
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Metadata, error)
}

// HTTPFetcher reads Open Graph and <title> tags from the linked page.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	u, err := Parse(rawURL)
	if err != nil {
		return Metadata{}, err
	}
	meta := Metadata{URL: u.String(), Host: u.Hostname()}

	body, err := f.get(ctx, u.String(), maxPageBytes)
	if err != nil {
		return meta, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return meta, common.Wrap(common.ErrDataValidation, err)
	}

	meta.Title = firstNonEmpty(
		doc.Find(`meta[property="og:title"]`).AttrOr("content", ""),
		doc.Find(`meta[name="twitter:title"]`).AttrOr("content", ""),
		doc.Find("title").First().Text(),
	)

	if img := doc.Find(`meta[property="og:image"]`).AttrOr("content", ""); img != "" {
		if ref, err := u.Parse(strings.TrimSpace(img)); err == nil {
			// The preview is optional; a broken image link keeps the title.
			if data, err := f.get(ctx, ref.String(), maxImageBytes); err == nil {
				meta.PreviewImage = data
			}
		}
	}
	return meta, nil
}

func (f *HTTPFetcher) get(ctx context.Context, target string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, common.Wrap(common.ErrDataValidation, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, common.Wrap(common.ErrInaccessibleResource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, common.Wrapf(common.ErrInaccessibleResource, "GET %s: status %d", target, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, common.Wrap(common.ErrInaccessibleResource, err)
	}
	if int64(len(data)) > limit {
		return nil, common.Wrapf(common.ErrDataValidation, "GET %s: body exceeds %d bytes", target, limit)
	}
	return data, nil
}

// Parse accepts absolute http(s) URLs only.
func Parse(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, common.Wrap(common.ErrDataValidation, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, common.Wrapf(common.ErrDataValidation, "not a web link: %q", rawURL)
	}
	return u, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Package linkpreview extracts Open Graph previews from web pages.
package linkpreview

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultTimeout   = 8 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxRedirects     = 10
	defaultMaxBody   = 2 << 20
	minImageSide     = 50

	// Fetch outcomes reported to FetcherConfig.OnResult.
	ResultFound    = "found"
	ResultNoImage  = "no_image"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

// Preview holds the Open Graph data of a page. Missing values are nil.
type Preview struct {
	Image       *string `json:"image"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// FetcherConfig configures the preview fetcher.
type FetcherConfig struct {
	Timeout      time.Duration
	UserAgent    string
	// MaxBodyBytes caps the downloaded page size; larger pages count as failures.
	MaxBodyBytes int
	Logger       *zap.Logger
	OnResult     func(result string)
}

// Fetcher downloads pages and extracts their preview metadata.
type Fetcher struct {
	client   *resty.Client
	logger   *zap.Logger
	onResult func(string)
}

// NewFetcher constructs a fetcher with browser-like headers.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	onResult := cfg.OnResult
	if onResult == nil {
		onResult = func(string) {}
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetResponseBodyLimit(maxBody)
	return &Fetcher{client: client, logger: logger, onResult: onResult}
}

// Fetch returns the preview for rawURL. Failures never surface as errors; they
// yield a preview with nil fields.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Preview {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") || pageURL.Host == "" {
		f.onResult(ResultRejected)
		return Preview{}
	}

	response, err := f.client.R().SetContext(ctx).Get(pageURL.String())
	if err != nil {
		f.logger.Debug("link preview fetch failed",
			zap.String("url", pageURL.String()),
			zap.Bool("body_too_large", errors.Is(err, resty.ErrResponseBodyTooLarge)),
			zap.Error(err),
		)
		f.onResult(ResultFailed)
		return Preview{}
	}
	if response.IsError() {
		f.logger.Debug("link preview fetch rejected", zap.String("url", pageURL.String()), zap.Int("status", response.StatusCode()))
		f.onResult(ResultFailed)
		return Preview{}
	}

	base := pageURL
	if raw := response.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		base = raw.Request.URL
	}
	preview := Extract(response.Body(), base)
	if preview.Image == nil {
		f.onResult(ResultNoImage)
	} else {
		f.onResult(ResultFound)
	}
	return preview
}

// FetchImage is Fetch narrowed to the image URL.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) *string {
	return f.Fetch(ctx, rawURL).Image
}

type pageMeta struct {
	ogImage       string
	twitterImage  string
	ogTitle       string
	title         string
	ogDescription string
	description   string
	firstImage    string
}

// Extract parses an HTML document and resolves relative image URLs against base.
func Extract(document []byte, base *url.URL) Preview {
	root, err := html.Parse(bytes.NewReader(document))
	if err != nil {
		return Preview{}
	}

	var meta pageMeta
	walk(root, base, &meta)

	image := firstNonEmpty(
		resolve(base, meta.ogImage),
		resolve(base, meta.twitterImage),
		meta.firstImage,
	)
	return Preview{
		Image:       optional(image),
		Title:       optional(firstNonEmpty(meta.ogTitle, meta.title)),
		Description: optional(firstNonEmpty(meta.ogDescription, meta.description)),
	}
}

func walk(node *html.Node, base *url.URL, meta *pageMeta) {
	if node.Type == html.ElementNode {
		switch node.DataAtom {
		case atom.Meta:
			collectMeta(node, meta)
		case atom.Title:
			if meta.title == "" && node.FirstChild != nil && node.FirstChild.Type == html.TextNode {
				meta.title = strings.TrimSpace(node.FirstChild.Data)
			}
		case atom.Img:
			if meta.firstImage == "" {
				meta.firstImage = significantImage(node, base)
			}
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walk(child, base, meta)
	}
}

func collectMeta(node *html.Node, meta *pageMeta) {
	key := strings.ToLower(firstNonEmpty(attribute(node, "property"), attribute(node, "name")))
	content := strings.TrimSpace(attribute(node, "content"))
	if content == "" {
		return
	}
	setOnce := func(target *string) {
		if *target == "" {
			*target = content
		}
	}
	switch key {
	case "og:image", "og:image:url", "og:image:secure_url":
		setOnce(&meta.ogImage)
	case "twitter:image", "twitter:image:src":
		setOnce(&meta.twitterImage)
	case "og:title":
		setOnce(&meta.ogTitle)
	case "og:description":
		setOnce(&meta.ogDescription)
	case "description":
		setOnce(&meta.description)
	}
}

// significantImage returns the absolute src of an <img> unless it looks like an
// icon, a tracking pixel or an inline asset.
func significantImage(node *html.Node, base *url.URL) string {
	src := strings.TrimSpace(attribute(node, "src"))
	if src == "" {
		return ""
	}
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "data:"),
		strings.HasSuffix(lower, ".svg"),
		strings.HasSuffix(lower, ".ico"),
		strings.Contains(lower, "pixel"),
		strings.Contains(lower, "tracking"),
		strings.Contains(lower, "1x1"),
		strings.Contains(lower, "logo") && (strings.Contains(lower, "16") || strings.Contains(lower, "32")):
		return ""
	}
	if tooSmall(attribute(node, "width")) || tooSmall(attribute(node, "height")) {
		return ""
	}
	return resolve(base, src)
}

func tooSmall(dimension string) bool {
	digits := strings.TrimSpace(dimension)
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return false
	}
	value, err := strconv.Atoi(digits[:end])
	return err == nil && value < minImageSide
}

func resolve(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	reference, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		if reference.IsAbs() {
			return reference.String()
		}
		return ""
	}
	resolved := base.ResolveReference(reference)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func attribute(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, name) {
			return attr.Val
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

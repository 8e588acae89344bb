package probe

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
)

// NoTitle is reported when a page has no <title>.
const NoTitle = "No title found"

// MetaTag is one <meta> element with a name (or property) and content.
type MetaTag struct {
	Name    string
	Content string
}

// WebResult is the outcome of one page fetch. Err is set when the request
// failed; the other fields are then empty.
type WebResult struct {
	URL        string
	StatusCode int
	Title      string
	Meta       []MetaTag
	Err        error
}

// WebFetcher fetches and summarises a page.
type WebFetcher interface {
	Fetch(ctx context.Context, url string) WebResult
}

// WebProber fetches pages with a bounded timeout and body size.
type WebProber struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	logger    *logging.Logger
}

// NewWebProber creates a WebProber from probe settings. TLS certificates are
// verified unless InsecureSkipVerify is set.
func NewWebProber(cfg config.ProbeConfig, logger *logging.Logger) *WebProber {
	if logger == nil {
		logger = logging.NewDiscard()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
	}

	return &WebProber{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		logger:    logger.WithComponent("web"),
	}
}

// Fetch requests url and extracts the title and meta tags. Any response
// status counts as a fetch; only transport and read failures are errors.
func (w *WebProber) Fetch(ctx context.Context, url string) WebResult {
	result := WebResult{URL: url}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		result.Err = errors.WrapProbeError(errors.CodeProbeFailed, "build request", url, err)
		return result
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		result.Err = errors.WrapProbeError(fetchErrorCode(err), "fetch", url, err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	body := io.Reader(resp.Body)
	if w.maxBody > 0 {
		body = io.LimitReader(resp.Body, w.maxBody)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		result.Err = errors.WrapProbeError(errors.CodeProbeFailed, "read page", url, err)
		return result
	}

	result.StatusCode = resp.StatusCode
	result.Title, result.Meta = extractPage(doc)

	w.logger.DebugProbe("Page fetched", url,
		"status", resp.StatusCode,
		"meta_tags", len(result.Meta),
		"duration", time.Since(start))
	return result
}

// extractPage returns the trimmed text of the first <title> and every meta
// tag that carries both a name (or property) and non-empty content.
func extractPage(doc *goquery.Document) (string, []MetaTag) {
	title := NoTitle
	if sel := doc.Find("title").First(); sel.Length() > 0 {
		title = strings.TrimSpace(sel.Text())
	}

	var meta []MetaTag
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			name = s.AttrOr("property", "")
		}
		content := s.AttrOr("content", "")
		if name != "" && content != "" {
			meta = append(meta, MetaTag{Name: name, Content: content})
		}
	})
	return title, meta
}

type timeoutError interface {
	Timeout() bool
}

func fetchErrorCode(err error) errors.ErrorCode {
	var te timeoutError
	if stderrors.As(err, &te) && te.Timeout() {
		return errors.CodeTimeout
	}
	return errors.CodeProbeFailed
}

// reason returns the underlying failure for display, without the error code
// prefix the wrapped error carries.
func reason(err error) string {
	var pe *errors.ProbeError
	if stderrors.As(err, &pe) && pe.Cause != nil {
		return pe.Cause.Error()
	}
	return fmt.Sprint(err)
}

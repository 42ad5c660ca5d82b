// Package pdf fetches remote PDF documents for the download proxy and the
// media importer.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"
)

// DefaultFilename is used when a URL has no usable last path segment.
const DefaultFilename = "document.pdf"

const maxRedirects = 10

// Sentinel errors for PDF download operations.
var (
	// ErrNotPDF is returned by OpenPDF when the response is not a PDF.
	ErrNotPDF = errors.New("pdf: response is not a PDF")
	// ErrTooLarge is returned when the body exceeds the maximum size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
	// ErrDownloadFailed is returned for network errors and non-2xx responses.
	ErrDownloadFailed = errors.New("pdf: download failed")
	// ErrSSRF is returned when the URL targets a private network address or
	// uses a scheme other than http or https.
	ErrSSRF = errors.New("pdf: request to private network denied")
)

// Config holds downloader configuration.
type Config struct {
	// Timeout bounds the whole request, including reading the body. Default: 60s.
	Timeout time.Duration
	// MaxSize is the largest accepted body in bytes. Default: 100MB.
	MaxSize int64
	// UserAgent is the User-Agent header.
	UserAgent string
	// AllowPrivateNetworks disables the private address checks. Tests only.
	AllowPrivateNetworks bool
}

// Stream is an open remote document. The caller must close Body.
type Stream struct {
	Body io.ReadCloser
	// ContentType is the response Content-Type header.
	ContentType string
	// ContentLength is the declared length, or -1 when unknown.
	ContentLength int64
	// Filename is derived from the final URL after redirects.
	Filename string
}

// Downloader opens remote documents with private network protection.
type Downloader struct {
	client               *http.Client
	maxSize              int64
	userAgent            string
	allowPrivateNetworks bool
}

// NewDownloader creates a Downloader with the given configuration.
func NewDownloader(cfg Config) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100 * 1024 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; PaperShare/1.0)"
	}

	d := &Downloader{
		maxSize:              cfg.MaxSize,
		userAgent:            cfg.UserAgent,
		allowPrivateNetworks: cfg.AllowPrivateNetworks,
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !cfg.AllowPrivateNetworks {
		// Checked on the resolved address at connect time, so a DNS answer
		// that changes between lookup and dial cannot reach a private host.
		dialer.Control = denyPrivateAddress
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	d.client = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: too many redirects", ErrDownloadFailed)
			}
			return checkScheme(req.URL)
		},
	}

	return d
}

// MaxSize returns the largest body the downloader accepts.
func (d *Downloader) MaxSize() int64 {
	return d.maxSize
}

// Open starts fetching rawURL and returns the response stream without
// checking its content type. Reading past MaxSize fails with ErrTooLarge.
func (d *Downloader) Open(ctx context.Context, rawURL string) (*Stream, error) {
	return d.open(ctx, rawURL, false)
}

// OpenPDF is like Open but fails with ErrNotPDF unless the response declares
// application/pdf or its body starts with the PDF signature.
func (d *Downloader) OpenPDF(ctx context.Context, rawURL string) (*Stream, error) {
	return d.open(ctx, rawURL, true)
}

func (d *Downloader) open(ctx context.Context, rawURL string, requirePDF bool) (*Stream, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrDownloadFailed, rawURL)
	}
	if err := checkScheme(parsed); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %w", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrSSRF) {
			return nil, fmt.Errorf("%w: %s", ErrSSRF, parsed.Hostname())
		}
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode)
	}
	if resp.ContentLength > d.maxSize {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrTooLarge, resp.ContentLength, d.maxSize)
	}

	stream := &Stream{
		Body:          &limitedBody{rc: resp.Body, remaining: d.maxSize},
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Filename:      FilenameFromURL(resp.Request.URL.String()),
	}

	if requirePDF && !isPDFContentType(stream.ContentType) {
		if err := sniffPDF(stream); err != nil {
			_ = stream.Body.Close()
			return nil, err
		}
	}

	return stream, nil
}

// FilenameFromURL returns the last path segment of rawURL, or DefaultFilename
// when there is none.
func FilenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return DefaultFilename
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return DefaultFilename
	}
	// Keep header values safe to quote.
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return DefaultFilename
	}
	return name
}

func isPDFContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.EqualFold(mediaType, "application/pdf")
}

// sniffPDF checks the body signature and puts the peeked bytes back.
func sniffPDF(s *Stream) error {
	head := make([]byte, 5)
	n, err := io.ReadFull(s.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: read body: %w", ErrDownloadFailed, err)
	}
	if string(head[:n]) != "%PDF-" {
		return fmt.Errorf("%w: Content-Type is %q", ErrNotPDF, s.ContentType)
	}
	s.Body = readCloser{Reader: io.MultiReader(strings.NewReader(string(head[:n])), s.Body), Closer: s.Body}
	return nil
}

func checkScheme(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", ErrSSRF, u.Scheme)
	}
}

// denyPrivateAddress is a net.Dialer Control hook rejecting private targets.
func denyPrivateAddress(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSSRF, err)
	}
	ip := net.ParseIP(host)
	if ip == nil || isPrivateIP(ip) {
		return fmt.Errorf("%w: %s", ErrSSRF, host)
	}
	return nil
}

// cgnat is the shared address space 100.64.0.0/10.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// isPrivateIP reports whether ip is loopback, private, link-local,
// unspecified, multicast or in the shared address space.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() ||
		cgnat.Contains(ip)
}

type readCloser struct {
	io.Reader
	io.Closer
}

// limitedBody fails with ErrTooLarge once more than remaining bytes are read.
type limitedBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.rc.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n + int(l.remaining), ErrTooLarge
	}
	return n, err
}

func (l *limitedBody) Close() error {
	return l.rc.Close()
}

// Package hibp checks passwords against the Have I Been Pwned range API
// using k-anonymity: only the first five hex characters of the SHA-1 digest
// ever leave the process.
package hibp

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/passvault/passvault/pkg/vault"
)

// DefaultBaseURL is the public Pwned Passwords range endpoint.
const DefaultBaseURL = "https://api.pwnedpasswords.com"

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "passvault"
	prefixLen      = 5
	sha1HexLen     = 40
)

// Client queries the range API. It implements vault.BreachChecker.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient returns a client against the public API unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: defaultTimeout},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check looks up the full SHA-1 digest (40 hex characters) against the range
// API and reports whether the password appears in a known breach. The digest
// suffix comparison is case-insensitive.
func (c *Client) Check(ctx context.Context, sha1Hex string) (vault.BreachState, error) {
	if len(sha1Hex) != sha1HexLen {
		return vault.BreachUnknown, fmt.Errorf("hibp: digest must be %d hex characters, got %d", sha1HexLen, len(sha1Hex))
	}
	prefix := strings.ToUpper(sha1Hex[:prefixLen])
	suffix := sha1Hex[prefixLen:]

	url := c.baseURL + "/range/" + prefix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return vault.BreachUnknown, fmt.Errorf("hibp: failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return vault.BreachUnknown, fmt.Errorf("hibp: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return vault.BreachUnknown, fmt.Errorf("hibp: unexpected status %d", resp.StatusCode)
	}

	// Response lines are "SUFFIX:COUNT".
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineSuffix, countStr, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(lineSuffix, suffix) {
			continue
		}
		count, err := strconv.ParseInt(strings.TrimSpace(countStr), 10, 64)
		if err != nil {
			continue
		}
		if count > 0 {
			c.log.Debug("digest found in breach corpus", zap.Int64("count", count))
			return vault.BreachCompromised, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return vault.BreachUnknown, fmt.Errorf("hibp: failed to read response: %w", err)
	}
	return vault.BreachSafe, nil
}

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/nexthire/nexthire-api/internal/api/metrics"
	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/ports"
	"github.com/nexthire/nexthire-api/internal/core/service"
)

// InputTracker decides what happens to a request after inspection.
type InputTracker interface {
	TrackInput(ctx context.Context, client ports.ClientRequest, email string, v *service.Violation) error
}

// Patterns are matched case-insensitively against the HTML-entity-decoded
// value. Order matters only for which pattern is reported.
var insecurePatterns = compilePatterns(
	`<script.*?>.*?</script>`,
	`&lt;script.*?&gt;.*?&lt;/script&gt;`,
	`<.*?on\w+=.*?>`,
	`&lt;.*?on\w+=.*?&gt;`,
	`javascript:`,
	`<iframe.*?>.*?</iframe>`,
	`&lt;iframe.*?&gt;.*?&lt;/iframe&gt;`,
	`<object.*?>.*?</object>`,
	`&lt;object.*?&gt;.*?&lt;/object&gt;`,
	`<embed.*?>.*?</embed>`,
	`&lt;embed.*?&gt;.*?&lt;/embed&gt;`,
	`<applet.*?>.*?</applet>`,
	`&lt;applet.*?&gt;.*?&lt;/applet&gt;`,
	`<meta.*?>`,
	`&lt;meta.*?&gt;`,
	`<link.*?>`,
	`&lt;link.*?&gt;`,
	`<style.*?>.*?</style>`,
	`&lt;style.*?&gt;.*?&lt;/style&gt;`,
	`expression\(`,
	`url\(.*?javascript:.*?\)`,
	`url\(.*?data:.*?\)`,
	`<!--.*?-->`,
	`/\*.*?\*/`,
	`eval\(.*?\)`,
	`setTimeout\(.*?\)`,
	`setInterval\(.*?\)`,
	`new\s+Function\(.*?\)`,
	`document\.write\(.*?\)`,
	`innerHTML\s*=\s*['"][^'"]*['"]`,
	`document\.cookie\s*=\s*['"][^'"]*['"]`,
	`location\.replace\(.*?\)`,
	`window\.location\s*=\s*['"][^'"]*['"]`,
	`<img\s+.*?onload\s*=\s*['"][^'"]*['"][^>]*>`,
	`<img\s+.*?onerror\s*=\s*['"][^'"]*['"][^>]*>`,
	`<meta\s+.*?http-equiv\s*=\s*['"]refresh['"][^>]*>`,
	`</?(div|span|form|input|textarea|button|select|option|label|a)\b.*?>`,
)

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return out
}

// NewHTMLPolicy returns the allow-list used to rewrite accepted values.
func NewHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "a", "p", "br", "ul", "ol", "li", "blockquote")
	p.AllowAttrs("href", "target").Globally()
	p.AllowURLSchemes("http", "https", "mailto")
	return p
}

// IsInsecure reports whether value matches any insecure pattern once HTML
// entities are decoded.
func IsInsecure(value string) bool {
	decoded := html.UnescapeString(value)
	for _, re := range insecurePatterns {
		if re.MatchString(decoded) {
			return true
		}
	}
	return false
}

func isSensitive(key string) bool {
	return strings.Contains(strings.ToLower(key), "password")
}

type inspector struct {
	policy    *bluemonday.Policy
	violation *service.Violation
}

// walk returns v with every accepted string rewritten and stops at the first
// insecure value.
func (in *inspector) walk(v any, path, key string) any {
	if in.violation != nil {
		return v
	}
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			val[k] = in.walk(val[k], joinPath(path, k), k)
		}
		return val
	case []any:
		for i := range val {
			val[i] = in.walk(val[i], path+"["+strconv.Itoa(i)+"]", key)
		}
		return val
	case string:
		if IsInsecure(val) {
			in.violation = &service.Violation{Field: path, Value: val, Sensitive: isSensitive(key)}
			return val
		}
		if isSensitive(key) || !strings.ContainsAny(val, "<>") {
			return val
		}
		return in.policy.Sanitize(val)
	default:
		return v
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Sanitize inspects JSON request bodies. The first insecure string flags the
// request and the tracker turns it into a 400 or a 429; clean requests from
// clients already over the limit are refused with 429. Accepted bodies are
// rewritten through the HTML allow-list before reaching the handler.
func Sanitize(tracker InputTracker, log zerolog.Logger) echo.MiddlewareFunc {
	policy := NewHTMLPolicy()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			client := Client(c)

			var body []byte
			if req.Body != nil && req.Body != http.NoBody {
				b, err := io.ReadAll(req.Body)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "unable to read request body")
				}
				body = b
			}

			if len(bytes.TrimSpace(body)) == 0 {
				if err := tracker.TrackInput(req.Context(), client, "", nil); err != nil {
					return inputError(err)
				}
				return next(c)
			}

			ctype := req.Header.Get(echo.HeaderContentType)
			if !strings.HasPrefix(ctype, echo.MIMEApplicationJSON) {
				return echo.NewHTTPError(http.StatusUnsupportedMediaType, "request body must be application/json")
			}

			dec := json.NewDecoder(bytes.NewReader(body))
			dec.UseNumber()
			var doc any
			if err := dec.Decode(&doc); err != nil {
				// Leave malformed JSON to the handler's binder.
				if err := tracker.TrackInput(req.Context(), client, "", nil); err != nil {
					return inputError(err)
				}
				req.Body = io.NopCloser(bytes.NewReader(body))
				return next(c)
			}

			email := bodyEmail(doc)
			in := &inspector{policy: policy}
			doc = in.walk(doc, "", "")

			if err := tracker.TrackInput(req.Context(), client, email, in.violation); err != nil {
				if in.violation != nil {
					log.Warn().
						Str("ip", client.IP).
						Str("field", in.violation.Field).
						Str("path", req.URL.Path).
						Msg("insecure input detected")
				}
				return inputError(err)
			}

			cleaned, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			req.Body = io.NopCloser(bytes.NewReader(cleaned))
			req.ContentLength = int64(len(cleaned))
			return next(c)
		}
	}
}

func bodyEmail(doc any) string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return ""
	}
	email, _ := obj["email"].(string)
	return email
}

func inputError(err error) error {
	switch {
	case errors.Is(err, domain.ErrMaliciousInput):
		metrics.MaliciousInputTotal.WithLabelValues("rejected").Inc()
	case errors.Is(err, domain.ErrTooManyMaliciousInputs):
		metrics.MaliciousInputTotal.WithLabelValues("blocked").Inc()
	}
	return err
}

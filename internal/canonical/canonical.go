// Package canonical rewrites URLs into the form they are stored under, so
// that trivially different spellings of one page hit the same filter bits.
//
// The transformations run in a fixed order; reordering them changes which
// URLs collide.
package canonical

import (
	"net/url"
	"strings"
)

// undesirableParams never change the page a URL points to.
var undesirableParams = []string{
	"ref",
	"sms_ss",
	"gclid",
	"fbclid",
	"at_xt",
	"_r",
}

// parts is a URL split into its five components without any unescaping.
type parts struct {
	scheme   string
	netloc   string
	path     string
	query    *query
	fragment string
}

// URL returns the canonical form of raw: scheme and fragment dropped,
// tracking parameters removed, index pages and trailing slashes trimmed,
// "www." removed and a few site specific rewrites applied. The result has
// the form //host/path?query.
func URL(raw string) string {
	u := split(raw)
	u.scheme, u.fragment = "", ""

	// html pages almost never use the query for anything but tracking.
	if strings.HasSuffix(u.path, ".html") {
		u.query = newQuery()
	}

	for _, key := range undesirableParams {
		u.query.del(key)
	}
	for _, key := range u.query.keys() {
		if strings.HasPrefix(key, "utm_") {
			u.query.del(key)
		}
	}

	u.path = strings.TrimSuffix(u.path, "index.html")
	u.path = strings.TrimSuffix(u.path, "index.php")
	if u.path != "/" {
		u.path = strings.TrimRight(u.path, "/")
	}

	u.netloc = strings.TrimPrefix(u.netloc, "www.")

	if u.netloc == "youtu.be" {
		u.netloc = "youtube.com"
		u.query.set("v", strings.Trim(u.path, "/"))
		u.path = "/watch"
	}
	if u.netloc == "youtube.com" && u.query.has("v") {
		u.query = u.query.only("v")
	}
	if u.netloc == "youtube.com" && u.query.has("list") {
		u.query = u.query.only("list")
	}

	if u.netloc == "amazon.com" {
		u.query = newQuery()
	}

	if u.netloc == "en.m.wikipedia.org" {
		u.netloc = "en.wikipedia.org"
	}

	return u.String()
}

// split breaks raw into scheme, netloc, path, query and fragment.
func split(raw string) parts {
	var u parts
	rest := raw

	if i := strings.IndexByte(rest, ':'); i > 0 && validScheme(rest[:i]) {
		u.scheme = strings.ToLower(rest[:i])
		rest = rest[i+1:]
	}
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		u.netloc, rest = rest[:end], rest[end:]
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		u.fragment, rest = rest[i+1:], rest[:i]
	}
	rawQuery := ""
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rawQuery, rest = rest[i+1:], rest[:i]
	}
	u.path = rest
	u.query = parseQuery(rawQuery)
	return u
}

func validScheme(s string) bool {
	for i, c := range s {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

func (u parts) String() string {
	var b strings.Builder
	if u.scheme != "" {
		b.WriteString(u.scheme)
		b.WriteByte(':')
	}
	path := u.path
	if u.netloc != "" {
		b.WriteString("//")
		b.WriteString(u.netloc)
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}
	b.WriteString(path)
	if q := u.query.encode(); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	if u.fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.fragment)
	}
	return b.String()
}

// query is a multi-valued query string that remembers the order in which
// keys first appeared.
type query struct {
	order  []string
	values map[string][]string
}

func newQuery() *query {
	return &query{values: make(map[string][]string)}
}

// parseQuery splits on '&', keeps blank values and unescapes '+' as space.
func parseQuery(raw string) *query {
	q := newQuery()
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		value = unescape(value)
		if _, ok := q.values[key]; !ok {
			q.order = append(q.order, key)
		}
		q.values[key] = append(q.values[key], value)
	}
	return q
}

// unescape turns '+' into a space and decodes each valid %XX escape on its
// own; malformed escapes stay verbatim and invalid UTF-8 becomes U+FFFD.
func unescape(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if !strings.Contains(s, "%") {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			out = append(out, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		out = append(out, s[i])
	}
	return strings.ToValidUTF8(string(out), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c <= '9':
		return c - '0'
	case c <= 'F':
		return c - 'A' + 10
	default:
		return c - 'a' + 10
	}
}

func (q *query) has(key string) bool {
	_, ok := q.values[key]
	return ok
}

func (q *query) keys() []string {
	return append([]string(nil), q.order...)
}

func (q *query) set(key, value string) {
	if !q.has(key) {
		q.order = append(q.order, key)
	}
	q.values[key] = []string{value}
}

func (q *query) del(key string) {
	if !q.has(key) {
		return
	}
	delete(q.values, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// only returns a query holding key alone.
func (q *query) only(key string) *query {
	out := newQuery()
	out.order = []string{key}
	out.values[key] = q.values[key]
	return out
}

func (q *query) encode() string {
	var b strings.Builder
	for _, key := range q.order {
		for _, value := range q.values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}
	return b.String()
}

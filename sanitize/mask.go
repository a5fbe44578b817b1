package sanitize

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Mask will mask a string by replacing the second half with asterisks.
func Mask(s string) string {
	l := len(s)
	if l == 0 {
		return s
	}
	if l == 1 {
		return "*"
	}
	h := l / 2
	return s[0:h] + strings.Repeat("*", l-h)
}

// MaskEmail masks the local part and the first domain label of an address.
// Anything that is not an address is masked whole.
func MaskEmail(val string) string {
	local, domain, ok := strings.Cut(val, "@")
	if !ok || local == "" || domain == "" {
		return Mask(val)
	}
	label, rest, ok := strings.Cut(domain, ".")
	if !ok {
		return Mask(local) + "@" + Mask(domain)
	}
	return Mask(local) + "@" + Mask(label) + "." + rest
}

// MaskURL hides the credentials, path and query values of a URL, e.g. a
// Redis connection string.
func MaskURL(urlString string) (string, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse URL")
	}
	var str strings.Builder
	str.WriteString(u.Scheme)
	str.WriteString("://")
	if u.User != nil {
		str.WriteString(Mask(u.User.Username()))
		if pass, ok := u.User.Password(); ok {
			str.WriteString(":")
			str.WriteString(Mask(pass))
		}
		str.WriteString("@")
	}
	str.WriteString(u.Host)
	if p := u.Path; len(p) > 1 {
		str.WriteString("/")
		str.WriteString(Mask(strings.TrimPrefix(p, "/")))
	}
	var qs []string
	for k, v := range u.Query() {
		qs = append(qs, k+"="+Mask(strings.Join(v, ",")))
	}
	sort.Strings(qs)
	if len(qs) > 0 {
		str.WriteString("?")
		str.WriteString(strings.Join(qs, "&"))
	}
	return str.String(), nil
}

// Secret is a string that prints masked and serializes in full, for
// credentials carried in configuration.
type Secret string

// Text returns the unmasked value.
func (s Secret) Text() string {
	return string(s)
}

// String implements fmt.Stringer to return a masked representation.
func (s Secret) String() string {
	return Mask(string(s))
}

// GoString implements fmt.GoStringer so %#v also prints masked.
func (s Secret) GoString() string {
	return s.String()
}

// MarshalJSON implements json.Marshaler for real (unmasked) JSON output.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// MarshalYAML implements yaml.Marshaler for real (unmasked) YAML output.
func (s Secret) MarshalYAML() (any, error) {
	return string(s), nil
}

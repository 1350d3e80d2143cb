// Package httpauth builds HTTP Basic-Auth headers from optional credentials.
package httpauth

import (
	"encoding/base64"
	"net/http"
	"os"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"
)

// Credentials is a username/password pair for HTTP Basic-Auth.
type Credentials struct {
	Username string
	Password string
}

// New returns credentials only when both username and password are set.
func New(username, password string) fn.Option[Credentials] {
	if username == "" || password == "" {
		return fn.None[Credentials]()
	}
	return fn.Some(Credentials{Username: username, Password: password})
}

// Value returns the Authorization header value, "Basic base64(user:pass)".
func (c Credentials) Value() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	return "Basic " + token
}

// Header returns a header set carrying the Authorization header when creds
// is set, and an empty header otherwise.
func Header(creds fn.Option[Credentials]) http.Header {
	h := http.Header{}
	creds.WhenSome(func(c Credentials) {
		h.Set("Authorization", c.Value())
	})
	return h
}

// FromCookieFile reads "username:password" credentials from a cookie file
// such as the one NBXplorer writes next to its data directory.
func FromCookieFile(path string) (Credentials, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, errors.Errorf("cookie file not found at path: %s", path)
		}
		return Credentials{}, errors.Wrapf(err, "could not read cookie file %s", path)
	}

	parts := strings.SplitN(strings.TrimSpace(string(content)), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Credentials{}, errors.Errorf("invalid cookie format in file: %s", path)
	}

	return Credentials{Username: parts[0], Password: parts[1]}, nil
}

package dbclient

import (
	"net"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"
)

// buildPostgresDSN constructs a postgres:// URL from Settings.
func buildPostgresDSN(s Settings) string {
	port := s.Port
	if port == 0 {
		port = 5432
	}
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.Username, s.Password),
		Host:     net.JoinHostPort(s.Host, strconv.Itoa(port)),
		Path:     "/" + s.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

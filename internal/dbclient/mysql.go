package dbclient

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// buildMySQLDSN constructs a MySQL DSN from Settings. Credentials are
// escaped by the driver.
func buildMySQLDSN(s Settings) string {
	port := s.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, strconv.Itoa(port))
	cfg.DBName = s.Database
	cfg.ParseTime = true
	if s.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}

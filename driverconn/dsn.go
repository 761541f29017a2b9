package driverconn

import "fmt"

// BuildDSN renders a libpq-style DSN for one specific host/port,
// reusing the base connection options (user, password, database,
// sslmode, ...) that the config package assembled for the cluster as
// a whole.
func BuildDSN(host string, port int, user, password, database, sslmode string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s", host, port, user, database, sslmode)
	if password != "" {
		dsn += fmt.Sprintf(" password=%s", password)
	}
	return dsn
}

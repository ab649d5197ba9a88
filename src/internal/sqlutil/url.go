package sqlutil

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
)

// URL contains the information needed to connect to a database, except for the password.
//
// Postgres URLs look like postgres://user@host:5432/dbname?sslmode=disable.  SQLite URLs name a
// file: sqlite:///var/lib/dedup.db, sqlite://relative.db, or sqlite://:memory:.
type URL struct {
	Protocol string
	User     string
	Host     string
	Port     uint16
	Database string
	Params   map[string]string
}

// ParseURL parses x into a URL.
func ParseURL(x string) (*URL, error) {
	u, err := url.Parse(x)
	if err != nil {
		return nil, errors.EnsureStack(err)
	}
	params := make(map[string]string)
	for k, v := range u.Query() {
		if len(v) > 0 {
			params[k] = v[len(v)-1]
		}
	}
	switch u.Scheme {
	case ProtocolPostgres, "postgresql":
		port := 5432
		if p := u.Port(); p != "" {
			if port, err = strconv.Atoi(p); err != nil {
				return nil, errors.Wrapf(err, "parse port of %q", x)
			}
		}
		return &URL{
			Protocol: ProtocolPostgres,
			User:     u.User.Username(),
			Host:     u.Hostname(),
			Port:     uint16(port),
			Database: strings.Trim(u.Path, "/"),
			Params:   params,
		}, nil
	case ProtocolSQLite, "sqlite3", "file":
		path := u.Host + u.Path
		if u.Opaque != "" {
			path = u.Opaque
		}
		if path == "" {
			return nil, errors.Errorf("sqlite URL %q names no file", x)
		}
		return &URL{Protocol: ProtocolSQLite, Database: path, Params: params}, nil
	default:
		return nil, errors.Errorf("database protocol %q not supported", u.Scheme)
	}
}

// Password returns the password embedded in x, if there is one.
func Password(x string) string {
	u, err := url.Parse(x)
	if err != nil || u.User == nil {
		return ""
	}
	p, _ := u.User.Password()
	return p
}

func (u *URL) String() string {
	if u.Protocol == ProtocolSQLite {
		return ProtocolSQLite + "://" + u.Database
	}
	return (&url.URL{
		Scheme: u.Protocol,
		Host:   u.Host + ":" + strconv.Itoa(int(u.Port)),
		User:   url.User(u.User),
		Path:   "/" + u.Database,
	}).String()
}

package preset

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelw/preset/internal/env"
)

// databaseSettings is the decomposed form of DATABASE_URL.
type databaseSettings struct {
	Engine   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// database reads and parses DATABASE_URL once per preset instance.
func (p *Preset) database(m *env.Manager) (databaseSettings, error) {
	if p.dbSettings.done {
		return p.dbSettings.value, p.dbSettings.err
	}

	scheme := "postgresql"
	if p.postGIS {
		scheme = "postgis"
	}

	raw, err := m.GetString("DATABASE_URL",
		env.BuildDefault(scheme+"://dum:dum@localhost/dummy"))
	if err == nil {
		var db databaseSettings
		db, err = parseDatabaseURL(raw)
		p.dbSettings = memo[databaseSettings]{done: true, value: db, err: err}
		return db, err
	}

	p.dbSettings = memo[databaseSettings]{done: true, err: err}
	return databaseSettings{}, err
}

// parseDatabaseURL decomposes a postgres:// style URL into named fields.
func parseDatabaseURL(raw string) (databaseSettings, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return databaseSettings{}, fmt.Errorf("parse DATABASE_URL: %w", err)
	}

	var engine string
	switch u.Scheme {
	case "postgres", "postgresql":
		engine = "postgresql"
	case "postgis":
		engine = "postgis"
	default:
		return databaseSettings{}, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}

	port := 5432
	if raw := u.Port(); raw != "" {
		port, err = strconv.Atoi(raw)
		if err != nil {
			return databaseSettings{}, fmt.Errorf("invalid database port %q", raw)
		}
	}

	db := databaseSettings{
		Engine: engine,
		Host:   u.Hostname(),
		Port:   port,
		Name:   strings.TrimPrefix(u.Path, "/"),
	}

	if u.User != nil {
		db.User = u.User.Username()
		db.Password, _ = u.User.Password()
	}

	return db, nil
}

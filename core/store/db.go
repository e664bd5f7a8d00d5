package store

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"nearmiss-dashboard/config"
	"nearmiss-dashboard/core/utils"

	"github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// sqlite's built-in lower() folds ASCII only, so case-insensitive matching of
// accented text would differ from postgres.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("lower", 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return bytes.ToLower(v), nil
	default:
		return v, nil
	}
}

type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectOf inspects the driver behind db.
func DialectOf(db *sql.DB) Dialect {
	if db == nil {
		return DialectSQLite
	}
	if _, ok := db.Driver().(*stdlib.Driver); ok {
		return DialectPostgres
	}
	return DialectSQLite
}

// NewDB opens the configured database and verifies the connection.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	var (
		db  *sql.DB
		err error
	)
	if cfg.IsSQLite() || (strings.TrimSpace(cfg.DBPath) != "" && strings.TrimSpace(cfg.DBDriver) == "") {
		db, err = openSQLite(cfg.DBPath)
	} else {
		db, err = sql.Open("pgx", cfg.DBURL)
		if err == nil {
			db.SetMaxOpenConns(20)
			db.SetMaxIdleConns(5)
			db.SetConnMaxIdleTime(5 * time.Minute)
		}
	}
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", DialectOf(db), err)
	}
	if logger != nil {
		logger.Printf("db: connected (%s)", DialectOf(db))
	}
	return db, nil
}

func openSQLite(path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; a single connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	return db, nil
}

// rebind rewrites ? placeholders to $N for postgres. Quoted literals are left alone.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			inQuote = !inQuote
		}
		if c == '?' && !inQuote {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

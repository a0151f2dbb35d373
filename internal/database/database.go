// Package database pushes the lead list into an Oracle table. It is the
// optional sink behind `parcelview export --oracle`.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/sijms/go-ora/v2"

	"parcelview/internal/errors"
	"parcelview/internal/logging"
)

// dsn builds a properly encoded connection string for Oracle Autonomous Database
func dsn(username, password, host, port, service string, walletLocation string) string {
	if walletLocation != "" {
		// Use wallet-based mTLS connection
		return fmt.Sprintf(
			"oracle://%s:%s@%s:%s/%s?ssl=true&wallet_location=%s",
			url.PathEscape(username), url.PathEscape(password), host, port, service, url.PathEscape(walletLocation))
	}

	return (&url.URL{
		Scheme:   "oracle",
		User:     url.UserPassword(username, password), // escapes automatically
		Host:     host + ":" + port,
		Path:     "/" + service, // keep full service name
		RawQuery: "ssl=true",    // ADB requires TCPS on 1522
	}).String()
}

// DBConfig holds database connection configuration
type DBConfig struct {
	Host           string
	Port           string
	Service        string
	Username       string
	Password       string
	WalletLocation string
	Table          string // destination for exported leads
}

// Validate checks the fields a connection cannot do without.
func (c DBConfig) Validate() error {
	var missing []string
	for name, v := range map[string]string{"host": c.Host, "service": c.Service, "username": c.Username, "password": c.Password} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.New(errors.ErrCodeConfig, "oracle config missing %s", strings.Join(missing, ", "))
	}
	if !identRe.MatchString(c.Table) {
		return errors.New(errors.ErrCodeConfig, "oracle table %q is not a plain identifier", c.Table)
	}
	return nil
}

// Database holds the database connection and configuration
type Database struct {
	db     *sql.DB
	config DBConfig
}

// NewDatabase opens and pings an Oracle connection.
func NewDatabase(ctx context.Context, config DBConfig) (*Database, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)
	logger.Info("connecting to oracle", "host", config.Host, "service", config.Service, "wallet", config.WalletLocation != "")

	db, err := sql.Open("oracle", dsn(config.Username, config.Password, config.Host, config.Port, config.Service, config.WalletLocation))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExport, err, "open oracle connection")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeExport, err, "ping oracle")
	}

	return &Database{db: db, config: config}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// ExportLeads creates the destination table when it does not exist, then
// inserts every row in one transaction. Columns are stored as VARCHAR2 in
// the order given. It returns the number of rows written.
func (d *Database) ExportLeads(ctx context.Context, header []string, rows [][]string) (int, error) {
	logger := logging.FromContext(ctx)
	cols := columnNames(header)

	if _, err := d.db.ExecContext(ctx, createTableSQL(d.config.Table, cols)); err != nil && !alreadyExists(err) {
		return 0, errors.Wrap(errors.ErrCodeExport, err, "create table %s", d.config.Table)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeExport, err, "begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL(d.config.Table, cols))
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeExport, err, "prepare insert")
	}
	defer stmt.Close()

	for i, row := range rows {
		args := make([]any, len(cols))
		for j := range cols {
			if j < len(row) {
				args[j] = row[j]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, errors.Wrap(errors.ErrCodeExport, err, "insert row %d", i)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeExport, err, "commit")
	}

	logger.Info("exported leads to oracle", "table", d.config.Table, "rows", len(rows))
	return len(rows), nil
}

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_$#]{0,127}$`)

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// columnNames maps attribute names onto unique upper-case Oracle identifiers.
func columnNames(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.ToUpper(strings.Trim(nonIdent.ReplaceAllString(h, "_"), "_"))
		if name == "" || name[0] < 'A' || name[0] > 'Z' {
			name = "C_" + name
		}
		if n := seen[name]; n > 0 {
			seen[name]++
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

func createTableSQL(table string, cols []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf(`"%s" VARCHAR2(4000)`, c)
	}
	return fmt.Sprintf(`CREATE TABLE %s (%s)`, strings.ToUpper(table), strings.Join(defs, ", "))
}

func insertSQL(table string, cols []string) string {
	quoted := make([]string, len(cols))
	binds := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
		binds[i] = fmt.Sprintf(":%d", i+1)
	}
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		strings.ToUpper(table), strings.Join(quoted, ", "), strings.Join(binds, ", "))
}

// alreadyExists matches ORA-00955 (name is already used by an existing object).
func alreadyExists(err error) bool {
	return strings.Contains(err.Error(), "ORA-00955")
}

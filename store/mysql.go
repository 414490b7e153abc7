package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"go.nextspeaker.dev/nextspeaker/roster"
)

// MySQL keeps rosters in three tables shared by all namespaces:
//   - nextspeaker_candidates: (namespace, name), ordered by id
//   - nextspeaker_history:    (namespace, name), ordered by id, oldest first
//   - nextspeaker_settings:   (namespace, k, v)
type MySQL struct {
	db        *sql.DB
	namespace string
	prefix    string
}

// OpenMySQL opens a connection pool for dsn. Tables are created by Open.
func OpenMySQL(dsn, namespace string) (*MySQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}

	return NewMySQL(sql.OpenDB(connector), namespace), nil
}

// NewMySQL uses an already opened database.
func NewMySQL(db *sql.DB, namespace string) *MySQL {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &MySQL{db: db, namespace: namespace, prefix: "nextspeaker"}
}

func (s *MySQL) candidatesTable() string { return s.prefix + "_candidates" }
func (s *MySQL) historyTable() string    { return s.prefix + "_history" }
func (s *MySQL) settingsTable() string   { return s.prefix + "_settings" }

func (s *MySQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQL) migrate(ctx context.Context) error {
	for _, table := range []string{s.candidatesTable(), s.historyTable()} {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			namespace VARCHAR(255) NOT NULL,
			name      VARCHAR(255) NOT NULL,
			PRIMARY KEY (id),
			KEY idx_ns (namespace)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, table)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		namespace VARCHAR(255) NOT NULL,
		k         VARCHAR(64)  NOT NULL,
		v         TEXT         NOT NULL,
		PRIMARY KEY (namespace, k)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, s.settingsTable())
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *MySQL) Load(ctx context.Context) (roster.Roster, error) {
	candidates, err := s.names(ctx, s.candidatesTable())
	if err != nil {
		return roster.Roster{}, err
	}
	history, err := s.names(ctx, s.historyTable())
	if err != nil {
		return roster.Roster{}, err
	}

	var hv string
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT v FROM %s WHERE namespace=? AND k='halflife'", s.settingsTable()),
		s.namespace,
	).Scan(&hv)
	noSettings := errors.Is(err, sql.ErrNoRows)
	if err != nil && !noSettings {
		return roster.Roster{}, err
	}

	if noSettings && len(candidates) == 0 && len(history) == 0 {
		return roster.Roster{}, ErrNotFound
	}

	r := roster.New()
	r.Candidates = candidates
	r.History = history
	if !noSettings {
		r.Halflife, err = strconv.ParseFloat(hv, 64)
		if err != nil {
			return roster.Roster{}, fmt.Errorf("parsing halflife %q: %w", hv, err)
		}
	}
	return r, nil
}

func (s *MySQL) names(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT name FROM %s WHERE namespace=? ORDER BY id ASC", table),
		s.namespace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *MySQL) Save(ctx context.Context, r roster.Roster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for table, names := range map[string][]string{
		s.candidatesTable(): r.Candidates,
		s.historyTable():    r.History,
	} {
		_, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE namespace=?", table), s.namespace)
		if err != nil {
			return err
		}
		for _, n := range names {
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO %s (namespace, name) VALUES (?, ?)", table),
				s.namespace, n,
			)
			if err != nil {
				return err
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (namespace, k, v) VALUES (?, 'halflife', ?) ON DUPLICATE KEY UPDATE v=VALUES(v)",
			s.settingsTable()),
		s.namespace, strconv.FormatFloat(r.Halflife, 'g', -1, 64),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// AppendHistory records a selection without rewriting the whole roster.
func (s *MySQL) AppendHistory(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (namespace, name) VALUES (?, ?)", s.historyTable()),
		s.namespace, name,
	)
	return err
}

func (s *MySQL) Close() error {
	return s.db.Close()
}

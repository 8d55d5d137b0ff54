package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/gomessenger/internal/common"
	"github.com/dmitrijs2005/gomessenger/internal/dbx"
	"github.com/dmitrijs2005/gomessenger/internal/server/migrations"
)

// PostgresStore implements Store over database/sql with the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to postgres, applies the embedded migrations and clears the
// active-session table left over from a previous run.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM active_users`); err != nil {
		return nil, fmt.Errorf("error clearing active users: %w", err)
	}

	return NewPostgresStore(db), nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrStore, op, err)
}

func (s *PostgresStore) CheckUser(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, storeErr("check user", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetPasswordHash(ctx context.Context, name string) ([]byte, error) {
	var hash []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE name = $1`, name).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w: %s", common.ErrStore, common.ErrNotFound, name)
		}
		return nil, storeErr("get password hash", err)
	}
	return hash, nil
}

func (s *PostgresStore) GetPublicKey(ctx context.Context, name string) (string, error) {
	var pubkey string
	err := s.db.QueryRowContext(ctx,
		`SELECT pubkey FROM users WHERE name = $1`, name).Scan(&pubkey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %w: %s", common.ErrStore, common.ErrNotFound, name)
		}
		return "", storeErr("get public key", err)
	}
	return pubkey, nil
}

func (s *PostgresStore) Login(ctx context.Context, name, addr string, port int, publicKey string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`UPDATE users
			 SET last_login_at = now(),
			     pubkey = CASE WHEN $2 <> '' THEN $2 ELSE pubkey END
			 WHERE name = $1
			 RETURNING id`, name, publicKey).Scan(&id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %w: %s", common.ErrStore, common.ErrNotFound, name)
			}
			return storeErr("login", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO active_users (user_id, addr, port, login_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (user_id) DO UPDATE
			 SET addr = EXCLUDED.addr, port = EXCLUDED.port, login_at = EXCLUDED.login_at`,
			id, addr, port)
		if err != nil {
			return storeErr("login", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO login_history (user_id, addr, port, login_at)
			 VALUES ($1, $2, $3, now())`, id, addr, port)
		if err != nil {
			return storeErr("login", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO message_stats (user_id) VALUES ($1)
			 ON CONFLICT (user_id) DO NOTHING`, id)
		if err != nil {
			return storeErr("login", err)
		}
		return nil
	})
}

func (s *PostgresStore) Logout(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM active_users
		 WHERE user_id = (SELECT id FROM users WHERE name = $1)`, name)
	if err != nil {
		return storeErr("logout", err)
	}
	return nil
}

// AddContact is idempotent: a duplicate edge is ignored, as is a contact
// name that does not resolve to a registered user.
func (s *PostgresStore) AddContact(ctx context.Context, owner, contact string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (user_id, contact_id)
		 SELECT u.id, c.id FROM users u, users c
		 WHERE u.name = $1 AND c.name = $2
		 ON CONFLICT (user_id, contact_id) DO NOTHING`, owner, contact)
	if err != nil {
		return storeErr("add contact", err)
	}
	return nil
}

func (s *PostgresStore) RemoveContact(ctx context.Context, owner, contact string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM contacts
		 WHERE user_id = (SELECT id FROM users WHERE name = $1)
		   AND contact_id = (SELECT id FROM users WHERE name = $2)`, owner, contact)
	if err != nil {
		return storeErr("remove contact", err)
	}
	return nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, owner string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.name FROM contacts ct
		 JOIN users u ON u.id = ct.user_id
		 JOIN users c ON c.id = ct.contact_id
		 WHERE u.name = $1
		 ORDER BY c.name`, owner)
	if err != nil {
		return nil, storeErr("list contacts", err)
	}
	defer rows.Close()

	return scanNames(rows, "list contacts")
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM users ORDER BY name`)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer rows.Close()

	return scanNames(rows, "list users")
}

func scanNames(rows *sql.Rows, op string) ([]string, error) {
	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, storeErr(op, err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return names, nil
}

func (s *PostgresStore) ProcessMessage(ctx context.Context, from, to string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE message_stats SET sent = sent + 1
		 WHERE user_id = (SELECT id FROM users WHERE name = $1)`, from)
	if err != nil {
		return storeErr("process message", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE message_stats SET received = received + 1
		 WHERE user_id = (SELECT id FROM users WHERE name = $1)`, to)
	if err != nil {
		return storeErr("process message", err)
	}
	return nil
}

func (s *PostgresStore) RegisterUser(ctx context.Context, name string, passwordHash []byte) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO users (name, password_hash) VALUES ($1, $2) RETURNING id`,
			name, passwordHash).Scan(&id)
		if err != nil {
			return storeErr("register user", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_stats (user_id) VALUES ($1)`, id); err != nil {
			return storeErr("register user", err)
		}
		return nil
	})
}

func (s *PostgresStore) RemoveUser(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE name = $1`, name)
	if err != nil {
		return storeErr("remove user", err)
	}
	return nil
}

func (s *PostgresStore) ActiveUsers(ctx context.Context) ([]ActiveUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.name, a.addr, a.port, a.login_at
		 FROM active_users a JOIN users u ON u.id = a.user_id
		 ORDER BY u.name`)
	if err != nil {
		return nil, storeErr("active users", err)
	}
	defer rows.Close()

	result := []ActiveUser{}
	for rows.Next() {
		var a ActiveUser
		if err := rows.Scan(&a.Name, &a.Addr, &a.Port, &a.LoginAt); err != nil {
			return nil, storeErr("active users", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("active users", err)
	}
	return result, nil
}

// LoginHistory returns login records, filtered by name unless name is empty.
func (s *PostgresStore) LoginHistory(ctx context.Context, name string) ([]LoginEvent, error) {
	query := `SELECT u.name, h.addr, h.port, h.login_at
		 FROM login_history h JOIN users u ON u.id = h.user_id`
	args := []any{}
	if name != "" {
		query += ` WHERE u.name = $1`
		args = append(args, name)
	}
	query += ` ORDER BY h.login_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("login history", err)
	}
	defer rows.Close()

	result := []LoginEvent{}
	for rows.Next() {
		var e LoginEvent
		if err := rows.Scan(&e.Name, &e.Addr, &e.Port, &e.At); err != nil {
			return nil, storeErr("login history", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("login history", err)
	}
	return result, nil
}

func (s *PostgresStore) MessageHistory(ctx context.Context) ([]MessageStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.name, m.sent, m.received
		 FROM message_stats m JOIN users u ON u.id = m.user_id
		 ORDER BY u.name`)
	if err != nil {
		return nil, storeErr("message history", err)
	}
	defer rows.Close()

	result := []MessageStats{}
	for rows.Next() {
		var m MessageStats
		if err := rows.Scan(&m.Name, &m.Sent, &m.Received); err != nil {
			return nil, storeErr("message history", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("message history", err)
	}
	return result, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

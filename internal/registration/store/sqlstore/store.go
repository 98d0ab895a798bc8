// Package sqlstore persists registrations in PostgreSQL or SQLite through
// database/sql. Both backends share the queries below.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"teamreg/internal/registration/models"
	id "teamreg/pkg/domain"
	dErrors "teamreg/pkg/domain-errors"
	"teamreg/pkg/platform/sentinel"
	txctx "teamreg/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

const (
	insertRegistrationSQL = `INSERT INTO registrations
	(id, team_leader_email, project_field, project_category, accept_terms, registration_date, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	insertMemberSQL = `INSERT INTO team_members (id, registration_id, name, level, position)
	VALUES (?, ?, ?, ?, ?)`

	emailExistsSQL = `SELECT COUNT(1) FROM registrations WHERE team_leader_email = ?`

	countSQL = `SELECT COUNT(1) FROM registrations`

	selectJoinedSQL = `SELECT r.id, r.team_leader_email, r.project_field, r.project_category,
	r.accept_terms, r.registration_date, r.updated_at,
	m.id, m.name, m.level, m.position
	FROM registrations r
	LEFT JOIN team_members m ON m.registration_id = r.id`

	orderSQL = ` ORDER BY r.registration_date DESC, r.id ASC, m.position ASC`

	pageFilterSQL = ` WHERE r.id IN (SELECT id FROM registrations ORDER BY registration_date DESC, id ASC LIMIT ? OFFSET ?)`

	deleteMembersSQL       = `DELETE FROM team_members`
	deleteRegistrationsSQL = `DELETE FROM registrations`
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a database/sql registration store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, timeout: defaultTxTimeout}
}

func NewPostgres(db *sql.DB) *Store { return New(db, Postgres) }
func NewSQLite(db *sql.DB) *Store   { return New(db, SQLite) }

// RunInTx runs fn inside one SQL transaction carried by the context. Store
// calls made with that context join it. Any error rolls everything back.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := txctx.From(ctx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txctx.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := txctx.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts the registration and its members atomically. A taken email
// yields sentinel.ErrAlreadyUsed and nothing is written.
func (s *Store) Create(ctx context.Context, reg *models.Registration) error {
	return s.RunInTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		_, err := q.ExecContext(ctx, s.dialect.rebind(insertRegistrationSQL),
			reg.ID.String(),
			reg.TeamLeaderEmail,
			string(reg.ProjectField),
			string(reg.ProjectCategory),
			reg.AcceptTerms,
			s.dialect.bindTime(reg.RegistrationDate),
			s.dialect.bindTime(reg.UpdatedAt),
		)
		if err != nil {
			if s.dialect.isUniqueViolation(err) {
				return sentinel.ErrAlreadyUsed
			}
			return fmt.Errorf("insert registration: %w", err)
		}

		for _, m := range reg.Members {
			_, err := q.ExecContext(ctx, s.dialect.rebind(insertMemberSQL),
				m.ID.String(), reg.ID.String(), m.Name, string(m.Level), m.Order)
			if err != nil {
				return fmt.Errorf("insert member %d: %w", m.Order, err)
			}
		}
		return nil
	})
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	if err := s.q(ctx).QueryRowContext(ctx, s.dialect.rebind(emailExistsSQL), email).Scan(&n); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

func (s *Store) FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	regs, err := s.query(ctx, selectJoinedSQL+" WHERE r.id = ?"+orderSQL, regID.String())
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if len(regs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return regs[0], nil
}

// ListAll returns every registration newest first with members loaded.
func (s *Store) ListAll(ctx context.Context) ([]*models.Registration, error) {
	regs, err := s.query(ctx, selectJoinedSQL+orderSQL)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

func (s *Store) List(ctx context.Context, offset, limit int) ([]*models.Registration, error) {
	regs, err := s.query(ctx, selectJoinedSQL+pageFilterSQL+orderSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list registrations page: %w", err)
	}
	return regs, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.q(ctx).QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// DeleteAll removes every registration and member, returning how many
// registrations were removed.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	var removed int64
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		if _, err := q.ExecContext(ctx, deleteMembersSQL); err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		res, err := q.ExecContext(ctx, deleteRegistrationsSQL)
		if err != nil {
			return fmt.Errorf("delete registrations: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// query runs a joined select and folds member rows into their registration,
// preserving row order.
func (s *Store) query(ctx context.Context, query string, args ...any) ([]*models.Registration, error) {
	rows, err := s.q(ctx).QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out   []*models.Registration
		index = make(map[string]*models.Registration)
	)
	for rows.Next() {
		var (
			r                     registrationRow
			memberID, name, level sql.NullString
			position              sql.NullInt64
		)
		if err := rows.Scan(
			&r.ID, &r.Email, &r.Field, &r.Category, &r.AcceptTerms,
			dbTime{&r.RegisteredAt}, dbTime{&r.UpdatedAt},
			&memberID, &name, &level, &position,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}

		reg, ok := index[r.ID]
		if !ok {
			reg, err = r.toModel()
			if err != nil {
				return nil, err
			}
			index[r.ID] = reg
			out = append(out, reg)
		}
		if memberID.Valid {
			mid, err := uuid.Parse(memberID.String)
			if err != nil {
				return nil, fmt.Errorf("parse member id: %w", err)
			}
			reg.Members = append(reg.Members, models.TeamMember{
				ID:    id.MemberID(mid),
				Name:  name.String,
				Level: models.Level(level.String),
				Order: int(position.Int64),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	if out == nil {
		out = []*models.Registration{}
	}
	return out, nil
}

type registrationRow struct {
	ID           string
	Email        string
	Field        string
	Category     string
	AcceptTerms  bool
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

func (r registrationRow) toModel() (*models.Registration, error) {
	rid, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse registration id: %w", err)
	}
	return &models.Registration{
		ID:               id.RegistrationID(rid),
		TeamLeaderEmail:  r.Email,
		ProjectField:     models.ProjectField(r.Field),
		ProjectCategory:  models.ProjectCategory(r.Category),
		AcceptTerms:      r.AcceptTerms,
		RegistrationDate: r.RegisteredAt,
		UpdatedAt:        r.UpdatedAt,
		Members:          []models.TeamMember{},
	}, nil
}


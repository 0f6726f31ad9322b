package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/scenesync/internal/naming"
)

// ErrRecordNotFound is returned when an identity lookup yields no results.
var ErrRecordNotFound = errors.New("identity not found")

// ErrIdentifierTaken is returned by Register when the identifier is already
// held in the scope.
var ErrIdentifierTaken = errors.New("identifier already taken")

// ErrForeignObject is returned when a naming.Object is not a *Record.
var ErrForeignObject = errors.New("object is not a ledger record")

// Record is one row of the identity ledger. It implements naming.Object.
// A Record is not safe for concurrent use.
type Record struct {
	Handle    uuid.UUID
	Scope     naming.Scope
	AssetPath string
	CreatedAt time.Time
	UpdatedAt time.Time

	identity naming.Identity
}

// Identity returns the record's identifier and label as last read or written.
func (r *Record) Identity() naming.Identity {
	return r.identity
}

// IdentityRepository provides identity ledger persistence operations. The
// UNIQUE (scope, identifier) constraint is the commit test-and-set, so
// several processes can share one namespace.
//
// IdentityRepository implements naming.Host for Records, and scene.Ledger.
type IdentityRepository struct {
	db *pgxpool.Pool
}

// NewIdentityRepository creates an IdentityRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewIdentityRepository(db *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{db: db}
}

const recordColumns = `handle, scope, identifier, label, asset_path, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec   Record
		scope string
		id    string
	)
	err := row.Scan(&rec.Handle, &scope, &id, &rec.identity.Label, &rec.AssetPath, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Scope = naming.Scope(scope)
	rec.identity.ID = naming.Identifier(id)
	return &rec, nil
}

// Register inserts a new identity under a fresh handle.
//
// Precondition: scope and id must be non-empty.
// Postcondition: Returns the created Record, or ErrIdentifierTaken if id is
// held in scope.
func (r *IdentityRepository) Register(ctx context.Context, scope naming.Scope, id naming.Identifier, label, assetPath string) (*Record, error) {
	if scope == "" {
		return nil, naming.ErrInvalidScope
	}
	if id == "" {
		return nil, fmt.Errorf("%w: identifier must not be empty", naming.ErrPrecondition)
	}

	rec, err := scanRecord(r.db.QueryRow(ctx,
		`INSERT INTO identities (handle, scope, identifier, label, asset_path)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+recordColumns,
		uuid.New(), string(scope), string(id), label, assetPath,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("%q in scope %q: %w", id, scope, ErrIdentifierTaken)
		}
		return nil, fmt.Errorf("inserting identity: %w", err)
	}
	return rec, nil
}

// Get retrieves an identity by handle.
//
// Postcondition: Returns the Record or ErrRecordNotFound.
func (r *IdentityRepository) Get(ctx context.Context, handle uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM identities WHERE handle = $1`,
		handle,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying identity: %w", err)
	}
	return rec, nil
}

// List returns every identity in scope ordered by identifier.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (r *IdentityRepository) List(ctx context.Context, scope naming.Scope) ([]*Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM identities WHERE scope = $1 ORDER BY identifier`,
		string(scope),
	)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identities: %w", err)
	}
	return out, nil
}

// Exists reports whether id is held in scope.
func (r *IdentityRepository) Exists(ctx context.Context, scope naming.Scope, id naming.Identifier) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM identities WHERE scope = $1 AND identifier = $2)`,
		string(scope), string(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking identity: %w", err)
	}
	return exists, nil
}

// TryCommitIdentifier assigns candidate to the record if no other record in
// scope holds it. A unique violation is a refusal, not an error. The label
// is left untouched.
//
// Precondition: obj must be a *Record in scope.
// Postcondition: On success the record and its row carry candidate.
func (r *IdentityRepository) TryCommitIdentifier(ctx context.Context, obj naming.Object, scope naming.Scope, candidate naming.Identifier) (naming.Identifier, bool, error) {
	rec, ok := obj.(*Record)
	if !ok || rec == nil {
		return "", false, ErrForeignObject
	}
	if rec.Scope != scope {
		return "", false, fmt.Errorf("record %s lives in scope %q, not %q", rec.Handle, rec.Scope, scope)
	}

	var updated time.Time
	err := r.db.QueryRow(ctx,
		`UPDATE identities SET identifier = $1, updated_at = NOW()
		 WHERE handle = $2 AND scope = $3
		 RETURNING updated_at`,
		string(candidate), rec.Handle, string(scope),
	).Scan(&updated)
	if err != nil {
		if isDuplicateKeyError(err) {
			return "", false, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, ErrRecordNotFound
		}
		return "", false, fmt.Errorf("updating identifier: %w", err)
	}

	rec.identity.ID = candidate
	rec.UpdatedAt = updated
	return candidate, true, nil
}

// SetLabel replaces the record's label.
//
// Precondition: obj must be a *Record.
// Postcondition: Returns ErrRecordNotFound if the row was deleted.
func (r *IdentityRepository) SetLabel(ctx context.Context, obj naming.Object, text string) error {
	rec, ok := obj.(*Record)
	if !ok || rec == nil {
		return ErrForeignObject
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE identities SET label = $1, updated_at = NOW() WHERE handle = $2`,
		text, rec.Handle,
	)
	if err != nil {
		return fmt.Errorf("updating label: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	rec.identity.Label = text
	return nil
}

// Delete removes the identity with the given handle.
//
// Postcondition: Returns ErrRecordNotFound if no such identity exists.
func (r *IdentityRepository) Delete(ctx context.Context, handle uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM identities WHERE handle = $1`, handle)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Claim assigns id in scope to handle, inserting the row or moving the
// handle's existing claim. Labels of claimed rows are left untouched.
//
// Postcondition: Returns false without error when another handle holds id.
func (r *IdentityRepository) Claim(ctx context.Context, handle uuid.UUID, scope naming.Scope, id naming.Identifier, assetPath string) (bool, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO identities (handle, scope, identifier, asset_path)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (handle) DO UPDATE
		 SET scope = EXCLUDED.scope,
		     identifier = EXCLUDED.identifier,
		     asset_path = EXCLUDED.asset_path,
		     updated_at = NOW()`,
		handle, string(scope), string(id), assetPath,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("claiming identifier: %w", err)
	}
	return true, nil
}

// Release drops handle's claim. Unknown handles are ignored.
func (r *IdentityRepository) Release(ctx context.Context, handle uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM identities WHERE handle = $1`, handle); err != nil {
		return fmt.Errorf("releasing identity: %w", err)
	}
	return nil
}

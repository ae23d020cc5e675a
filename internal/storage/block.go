package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"awful/internal/domain"
	"awful/internal/tenant"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// BlockStore implements domain.BlockStore on top of a DB.
type BlockStore struct {
	db   *DB
	exec execer
	inTx bool
}

func NewBlockStore(db *DB) *BlockStore {
	return &BlockStore{db: db, exec: db.conn}
}

var (
	_ domain.BlockStore  = (*BlockStore)(nil)
	_ domain.OwnerLister = (*BlockStore)(nil)
)

// binder collects bind arguments and hands out the matching placeholders.
type binder struct {
	d    Dialect
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// ownerSelect lists the owner columns in scan order. Tables of secondary
// tenants have no user_id column, so NULL stands in for it.
func (s *BlockStore) ownerSelect(t tenant.ID) string {
	user := ColumnUser
	if t != s.db.primary {
		user = "NULL"
	}
	return strings.Join([]string{ColumnSite, user, ColumnPost, ColumnTerm, ColumnComment}, ", ")
}

type ownerColumnsRow struct {
	site    sql.NullBool
	user    sql.NullInt64
	post    sql.NullInt64
	term    sql.NullInt64
	comment sql.NullInt64
}

func (r *ownerColumnsRow) targets() []any {
	return []any{&r.site, &r.user, &r.post, &r.term, &r.comment}
}

func (r *ownerColumnsRow) ref(t tenant.ID) (domain.OwnerRef, error) {
	var refs []domain.OwnerRef
	if r.site.Valid && r.site.Bool {
		refs = append(refs, domain.OwnerRef{Kind: domain.OwnerSite, ID: uint64(t)})
	}
	for _, c := range []struct {
		kind domain.OwnerKind
		val  sql.NullInt64
	}{
		{domain.OwnerUser, r.user},
		{domain.OwnerPost, r.post},
		{domain.OwnerTerm, r.term},
		{domain.OwnerComment, r.comment},
	} {
		if c.val.Valid {
			refs = append(refs, domain.OwnerRef{Kind: c.kind, ID: uint64(c.val.Int64)})
		}
	}
	if len(refs) != 1 {
		return domain.OwnerRef{}, fmt.Errorf("row has %d owner references", len(refs))
	}
	return refs[0], nil
}

// FetchBlocks returns every block matched by q, reading q's tenant table
// whatever tenant ctx is scoped to.
func (s *BlockStore) FetchBlocks(ctx context.Context, q domain.Query) ([]domain.Block, error) {
	pred, err := QuerySQL(s.db.dialect, q)
	if err != nil {
		return nil, err
	}

	var blocks []domain.Block
	err = tenant.Within(ctx, s.db.switcher, q.Tenant, func(ctx context.Context) error {
		table, t := s.db.currentTable(ctx)
		rows, err := s.exec.QueryContext(ctx,
			"SELECT id, uuid, "+s.ownerSelect(t)+", type, data FROM "+table+" WHERE "+pred+" ORDER BY id ASC",
		)
		if err != nil {
			return &domain.DatabaseError{Op: "fetch blocks", Err: err}
		}
		defer rows.Close()

		for rows.Next() {
			var (
				b     domain.Block
				owner ownerColumnsRow
				data  []byte
			)
			targets := append([]any{&b.ID, &b.UUID}, owner.targets()...)
			targets = append(targets, &b.Type, &data)
			if err := rows.Scan(targets...); err != nil {
				return &domain.DatabaseError{Op: "scan block", Err: err}
			}
			if b.Owner, err = owner.ref(t); err != nil {
				return &domain.DatabaseError{Op: "decode block " + b.UUID, Err: err}
			}
			if err := json.Unmarshal(data, &b.Data); err != nil {
				return &domain.DatabaseError{Op: "decode block " + b.UUID, Err: err}
			}
			if b.Data == nil {
				b.Data = map[string]any{}
			}
			blocks = append(blocks, b)
		}
		if err := rows.Err(); err != nil {
			return &domain.DatabaseError{Op: "fetch blocks", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// ownerLiterals renders the owner columns of b. Numeric placeholders do not
// take NULL the same way on every driver, so the values are written inline:
// an integer or an explicit NULL.
func (s *BlockStore) ownerLiterals(t tenant.ID, ref domain.OwnerRef) ([]string, error) {
	site, user, post, term, comment := "NULL", "NULL", "NULL", "NULL", "NULL"
	id := strconv.FormatUint(ref.ID, 10)
	switch ref.Kind {
	case domain.OwnerSite:
		site = s.db.dialect.Bool(true)
	case domain.OwnerUser:
		if t != s.db.primary {
			return nil, fmt.Errorf("user blocks belong to tenant %d, not %d", s.db.primary, t)
		}
		user = id
	case domain.OwnerPost:
		post = id
	case domain.OwnerTerm:
		term = id
	case domain.OwnerComment:
		comment = id
	default:
		return nil, fmt.Errorf("unknown owner kind %d", int(ref.Kind))
	}
	if t != s.db.primary {
		return []string{site, post, term, comment}, nil
	}
	return []string{site, user, post, term, comment}, nil
}

// SaveBlocks inserts blocks without an id and replaces the data of blocks
// with one. New rows are never upserted, so a uuid held by another row
// fails the save instead of touching that row.
func (s *BlockStore) SaveBlocks(ctx context.Context, t tenant.ID, blocks []domain.Block) error {
	var fresh, stored []domain.Block
	for _, b := range blocks {
		if b.ID > 0 {
			stored = append(stored, b)
		} else {
			fresh = append(fresh, b)
		}
	}
	if len(fresh) == 0 || len(stored) == 0 {
		return s.insert(ctx, t, fresh, stored)
	}
	return s.Atomically(ctx, func(tx domain.BlockStore) error {
		return tx.(*BlockStore).insert(ctx, t, fresh, stored)
	})
}

func (s *BlockStore) insert(ctx context.Context, t tenant.ID, fresh, stored []domain.Block) error {
	return tenant.Within(ctx, s.db.switcher, t, func(ctx context.Context) error {
		if len(fresh) > 0 {
			if err := s.insertRows(ctx, t, fresh, ""); err != nil {
				return err
			}
		}
		if len(stored) > 0 {
			return s.insertRows(ctx, t, stored, s.db.dialect.Upsert())
		}
		return nil
	})
}

func (s *BlockStore) insertRows(ctx context.Context, t tenant.ID, blocks []domain.Block, suffix string) error {
	columns := []string{"id", "uuid", ColumnSite}
	if t == s.db.primary {
		columns = append(columns, ColumnUser)
	}
	columns = append(columns, ColumnPost, ColumnTerm, ColumnComment, "type", "data")

	b := &binder{d: s.db.dialect}
	values := make([]string, 0, len(blocks))
	for _, block := range blocks {
		data := block.Data
		if data == nil {
			data = map[string]any{}
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode block %s: %w", block.UUID, err)
		}
		owner, err := s.ownerLiterals(t, block.Owner)
		if err != nil {
			return fmt.Errorf("block %s: %w", block.UUID, err)
		}

		id := s.db.dialect.NewID()
		if block.ID > 0 {
			id = strconv.FormatInt(block.ID, 10)
		}
		row := []string{id, b.bind(block.UUID)}
		row = append(row, owner...)
		row = append(row, b.bind(block.Type), b.bind(string(encoded)))
		values = append(values, "("+strings.Join(row, ", ")+")")
	}

	table, _ := s.db.currentTable(ctx)
	query := "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES " +
		strings.Join(values, ", ") + suffix
	if _, err := s.exec.ExecContext(ctx, query, b.args...); err != nil {
		return &domain.DatabaseError{Op: "save blocks", Err: err}
	}
	return nil
}

// TakenUUIDs returns those of uuids already stored in t's table.
func (s *BlockStore) TakenUUIDs(ctx context.Context, t tenant.ID, uuids []string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	var taken []string
	err := tenant.Within(ctx, s.db.switcher, t, func(ctx context.Context) error {
		b := &binder{d: s.db.dialect}
		marks := make([]string, len(uuids))
		for i, u := range uuids {
			marks[i] = b.bind(u)
		}
		table, _ := s.db.currentTable(ctx)
		rows, err := s.exec.QueryContext(ctx,
			"SELECT uuid FROM "+table+" WHERE uuid IN ("+strings.Join(marks, ", ")+") ORDER BY uuid", b.args...)
		if err != nil {
			return &domain.DatabaseError{Op: "look up uuids", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			var u string
			if err := rows.Scan(&u); err != nil {
				return &domain.DatabaseError{Op: "scan uuid", Err: err}
			}
			taken = append(taken, u)
		}
		if err := rows.Err(); err != nil {
			return &domain.DatabaseError{Op: "look up uuids", Err: err}
		}
		return nil
	})
	return taken, err
}

// DeleteBlocksFor deletes the owner's blocks whose uuid is listed.
func (s *BlockStore) DeleteBlocksFor(ctx context.Context, owner domain.OwnerID, uuids []string) error {
	if len(uuids) == 0 {
		return nil
	}
	pred, err := OwnerSQL(s.db.dialect, owner)
	if err != nil {
		return err
	}
	return tenant.Within(ctx, s.db.switcher, owner.Tenant, func(ctx context.Context) error {
		b := &binder{d: s.db.dialect}
		marks := make([]string, len(uuids))
		for i, u := range uuids {
			marks[i] = b.bind(u)
		}
		table, _ := s.db.currentTable(ctx)
		query := "DELETE FROM " + table + " WHERE " + pred + " AND uuid IN (" + strings.Join(marks, ", ") + ")"
		if _, err := s.exec.ExecContext(ctx, query, b.args...); err != nil {
			return &domain.DatabaseError{Op: "delete blocks", Err: err}
		}
		return nil
	})
}

// Atomically runs fn inside a transaction. Nested calls join the outer one.
func (s *BlockStore) Atomically(ctx context.Context, fn func(domain.BlockStore) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return &domain.DatabaseError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if err := fn(&BlockStore{db: s.db, exec: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &domain.DatabaseError{Op: "commit", Err: err}
	}
	return nil
}

// ListOwners returns every owner with at least one block in t's table.
func (s *BlockStore) ListOwners(ctx context.Context, t tenant.ID) ([]domain.OwnerID, error) {
	var owners []domain.OwnerID
	err := tenant.Within(ctx, s.db.switcher, t, func(ctx context.Context) error {
		table, _ := s.db.currentTable(ctx)
		rows, err := s.exec.QueryContext(ctx, "SELECT DISTINCT "+s.ownerSelect(t)+" FROM "+table)
		if err != nil {
			return &domain.DatabaseError{Op: "list owners", Err: err}
		}
		defer rows.Close()

		for rows.Next() {
			var owner ownerColumnsRow
			if err := rows.Scan(owner.targets()...); err != nil {
				return &domain.DatabaseError{Op: "scan owner", Err: err}
			}
			ref, err := owner.ref(t)
			if err != nil {
				return &domain.DatabaseError{Op: "list owners", Err: err}
			}
			owners = append(owners, domain.OwnerID{Tenant: t, Ref: ref})
		}
		if err := rows.Err(); err != nil {
			return &domain.DatabaseError{Op: "list owners", Err: err}
		}
		return nil
	})
	return owners, err
}

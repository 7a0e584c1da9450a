package batches_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

var errFakeExec = errors.New("fake exec failure")

// fakeDB is an in-process database/sql driver that records statements and
// serves canned rows matched by query substring.
type fakeDB struct {
	mu        sync.Mutex
	execs     []fakeExec
	commits   int
	rollbacks int

	failOn   string
	affected map[string]int64
	rows     map[string]fakeRows
}

type fakeExec struct {
	query string
	args  []driver.Value
}

type fakeRows struct {
	cols []string
	vals [][]driver.Value
}

func newFakeDB(t *testing.T) (*fakeDB, *sql.DB) {
	t.Helper()
	f := &fakeDB{
		affected: map[string]int64{},
		rows:     map[string]fakeRows{},
	}
	db := sql.OpenDB(f)
	t.Cleanup(func() { db.Close() })
	return f, db
}

// execsMatching returns the recorded statements containing fragment.
func (f *fakeDB) execsMatching(fragment string) []fakeExec {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []fakeExec
	for _, e := range f.execs {
		if strings.Contains(e.query, fragment) {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeDB) Connect(context.Context) (driver.Conn, error) {
	return &fakeConn{db: f}, nil
}

func (f *fakeDB) Driver() driver.Driver {
	return fakeDriver{db: f}
}

func (f *fakeDB) exec(query string, args []driver.Value) (driver.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.execs = append(f.execs, fakeExec{query: query, args: args})

	if f.failOn != "" && strings.Contains(query, f.failOn) {
		return nil, errFakeExec
	}

	n := int64(1)
	for fragment, count := range f.affected {
		if strings.Contains(query, fragment) {
			n = count
		}
	}
	return driver.RowsAffected(n), nil
}

func (f *fakeDB) query(query string) (driver.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for fragment, rows := range f.rows {
		if strings.Contains(query, fragment) {
			return &fakeRowsIter{rows: rows}, nil
		}
	}
	return &fakeRowsIter{}, nil
}

type fakeDriver struct{ db *fakeDB }

func (d fakeDriver) Open(string) (driver.Conn, error) {
	return &fakeConn{db: d.db}, nil
}

type fakeConn struct{ db *fakeDB }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{db: c.db, query: query}, nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	return &fakeTx{db: c.db}, nil
}

type fakeTx struct{ db *fakeDB }

func (t *fakeTx) Commit() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.rollbacks++
	return nil
}

type fakeStmt struct {
	db    *fakeDB
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.db.exec(s.query, args)
}

func (s *fakeStmt) Query([]driver.Value) (driver.Rows, error) {
	return s.db.query(s.query)
}

type fakeRowsIter struct {
	rows fakeRows
	next int
}

func (r *fakeRowsIter) Columns() []string { return r.rows.cols }
func (r *fakeRowsIter) Close() error      { return nil }

func (r *fakeRowsIter) Next(dest []driver.Value) error {
	if r.next >= len(r.rows.vals) {
		return io.EOF
	}
	copy(dest, r.rows.vals[r.next])
	r.next++
	return nil
}

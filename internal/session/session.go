// Package session is the glue above the executor: it owns the set of
// database files a running engine knows about, opens/closes the catalog
// and buffer pool backing whichever one is currently selected by USE, and
// drives EXECFILE scripts through the same statement pipeline an
// interactive line goes through.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"pagedb/internal/engine/exec"
	"pagedb/internal/engine/sql"
	"pagedb/internal/storage/buffer"
	"pagedb/internal/storage/catalog"
	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/replacer"
)

// ErrQuit is returned by Execute for a QUIT statement — the caller's REPL
// loop should treat it as a clean request to stop, not a failure.
var ErrQuit = errors.New("session: quit")

const dbFileExt = ".db"

const defaultPoolSize = 256

// openDatabase is one database file's live handles, kept open across
// statements until DROP DATABASE or EngineSession.Close.
type openDatabase struct {
	dm   *disk.Manager
	pool *buffer.Pool
	cat  *catalog.Catalog
	env  *exec.Env
}

// EngineSession is a running engine's top-level state: every open
// database plus which one USE last selected.
type EngineSession struct {
	dataDir string
	log     *logrus.Logger
	out     io.Writer

	open    map[string]*openDatabase
	current string
}

// New builds a session rooted at dataDir, the directory each named
// database's <name>.db file lives under. out receives the output an
// EXECFILE script prints as it runs; pass nil for os.Stdout.
func New(dataDir string, log *logrus.Logger, out io.Writer) *EngineSession {
	if log == nil {
		log = logrus.New()
	}
	if out == nil {
		out = os.Stdout
	}
	return &EngineSession{
		dataDir: dataDir,
		log:     log,
		out:     out,
		open:    make(map[string]*openDatabase),
	}
}

func (s *EngineSession) path(name string) string {
	return filepath.Join(s.dataDir, name+dbFileExt)
}

// Execute runs one parsed statement. Database-lifecycle statements are
// handled here; every other statement kind is forwarded to the executor
// for the currently selected database.
func (s *EngineSession) Execute(stmt sql.Statement) (*exec.ResultSet, error) {
	switch st := stmt.(type) {
	case sql.CreateDatabase:
		return s.executeCreateDatabase(st)
	case sql.DropDatabase:
		return s.executeDropDatabase(st)
	case sql.ShowDatabases:
		return s.executeShowDatabases()
	case sql.UseDatabase:
		return s.executeUseDatabase(st)
	case sql.ExecFile:
		return s.executeExecFile(st)
	case sql.Quit:
		return nil, ErrQuit
	default:
		env, ok := s.currentEnv()
		if !ok {
			return nil, fmt.Errorf("session: no database selected — run USE <db> first")
		}
		return env.Execute(stmt)
	}
}

func (s *EngineSession) currentEnv() (*exec.Env, bool) {
	db, ok := s.open[s.current]
	if !ok {
		return nil, false
	}
	return db.env, true
}

func (s *EngineSession) executeCreateDatabase(st sql.CreateDatabase) (*exec.ResultSet, error) {
	path := s.path(st.Name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("session: database %q already exists", st.Name)
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create database %q: %w", st.Name, err)
	}
	dm, err := disk.Open(path, s.log)
	if err != nil {
		return nil, fmt.Errorf("session: create database %q: %w", st.Name, err)
	}
	pool := buffer.NewPool(dm, replacer.NewLRU(), defaultPoolSize, s.log)
	cat, err := catalog.Create(pool, s.log)
	if err != nil {
		dm.Close()
		return nil, fmt.Errorf("session: create database %q: %w", st.Name, err)
	}
	s.open[st.Name] = &openDatabase{dm: dm, pool: pool, cat: cat, env: exec.New(cat, s.log)}
	s.current = st.Name
	return &exec.ResultSet{Status: catalog.StatusSuccess}, nil
}

func (s *EngineSession) executeDropDatabase(st sql.DropDatabase) (*exec.ResultSet, error) {
	path := s.path(st.Name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("session: database %q does not exist", st.Name)
	}
	if db, ok := s.open[st.Name]; ok {
		if err := db.cat.Close(); err != nil {
			return nil, err
		}
		if err := db.pool.Close(); err != nil {
			return nil, err
		}
		if err := db.dm.Close(); err != nil {
			return nil, err
		}
		delete(s.open, st.Name)
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("session: drop database %q: %w", st.Name, err)
	}
	if s.current == st.Name {
		s.current = ""
	}
	return &exec.ResultSet{Status: catalog.StatusSuccess}, nil
}

func (s *EngineSession) executeShowDatabases() (*exec.ResultSet, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &exec.ResultSet{Cols: []string{"database"}, Status: catalog.StatusSuccess}, nil
		}
		return nil, fmt.Errorf("session: show databases: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), dbFileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), dbFileExt))
	}
	sort.Strings(names)

	rs := &exec.ResultSet{Cols: []string{"database"}, Status: catalog.StatusSuccess}
	for _, n := range names {
		rs.Rows = append(rs.Rows, exec.Row{"database": n})
	}
	return rs, nil
}

func (s *EngineSession) executeUseDatabase(st sql.UseDatabase) (*exec.ResultSet, error) {
	if _, ok := s.open[st.Name]; ok {
		s.current = st.Name
		return &exec.ResultSet{Status: catalog.StatusSuccess}, nil
	}

	path := s.path(st.Name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("session: database %q does not exist", st.Name)
	}
	dm, err := disk.Open(path, s.log)
	if err != nil {
		return nil, fmt.Errorf("session: use database %q: %w", st.Name, err)
	}
	pool := buffer.NewPool(dm, replacer.NewLRU(), defaultPoolSize, s.log)
	cat, err := catalog.Open(pool, s.log)
	if err != nil {
		dm.Close()
		return nil, fmt.Errorf("session: use database %q: %w", st.Name, err)
	}
	s.open[st.Name] = &openDatabase{dm: dm, pool: pool, cat: cat, env: exec.New(cat, s.log)}
	s.current = st.Name
	return &exec.ResultSet{Status: catalog.StatusSuccess}, nil
}

// executeExecFile runs every statement in a script file through Execute,
// streaming each one's rendered output to s.out as it completes — the
// same place interactive statements are printed from.
func (s *EngineSession) executeExecFile(st sql.ExecFile) (*exec.ResultSet, error) {
	f, err := os.Open(st.Path)
	if err != nil {
		return nil, fmt.Errorf("session: execfile %q: %w", st.Path, err)
	}
	defer f.Close()

	ran := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimSuffix(line, ";")
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		stmt, err := sql.Parse(line)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %s: %s\n", st.Path, err)
			continue
		}
		rs, err := s.Execute(stmt)
		if err != nil {
			if errors.Is(err, ErrQuit) {
				return nil, ErrQuit
			}
			fmt.Fprintf(s.out, "Error: %s\n", err)
			continue
		}
		ran++
		if rs.Cols != nil {
			fmt.Fprint(s.out, exec.FormatResultSet(rs))
		} else {
			fmt.Fprintln(s.out, exec.FormatStatus(rs))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("session: execfile %q: %w", st.Path, err)
	}
	return &exec.ResultSet{Status: catalog.StatusSuccess, RowsAffected: ran}, nil
}

// Close flushes and closes every database this session has opened.
func (s *EngineSession) Close() error {
	for name, db := range s.open {
		if err := db.cat.Close(); err != nil {
			return fmt.Errorf("session: close %q: %w", name, err)
		}
		if err := db.pool.Close(); err != nil {
			return fmt.Errorf("session: close %q: %w", name, err)
		}
		if err := db.dm.Close(); err != nil {
			return fmt.Errorf("session: close %q: %w", name, err)
		}
		delete(s.open, name)
	}
	return nil
}

// Current returns the name of the currently selected database, and false
// if none has been selected yet.
func (s *EngineSession) Current() (string, bool) {
	return s.current, s.current != ""
}

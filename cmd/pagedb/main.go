// Command pagedb is the interactive shell over the storage engine: it
// reads statements terminated by ';', dispatches each through a session,
// and prints its result — the same loop shape as the teacher's REPL,
// trimmed to this engine's plainer statement surface and output formats.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"

	"pagedb/internal/engine/exec"
	"pagedb/internal/engine/sql"
	"pagedb/internal/session"
)

func main() {
	configPath := flag.String("config", "pagedb.yaml", "path to a YAML config file")
	dataDir := flag.String("data-dir", "", "directory holding database files (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pagedb:", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	sess := session.New(cfg.DataDir, log, os.Stdout)
	defer func() {
		if err := sess.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "pagedb:", err)
		}
	}()

	if err := runREPL(sess); err != nil {
		fmt.Fprintln(os.Stderr, "pagedb:", err)
		os.Exit(1)
	}
}

// lineReader abstracts the two ways statements can arrive: an interactive
// readline.Instance with history and editing, or a plain bufio.Scanner
// when stdin is not a terminal (piped input, redirected files).
type lineReader interface {
	Readline(prompt string) (string, error)
	Close() error
}

type rlReader struct{ rl *readline.Instance }

func (r rlReader) Readline(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	return r.rl.Readline()
}
func (r rlReader) Close() error { return r.rl.Close() }

type scanReader struct{ sc *bufio.Scanner }

func (r scanReader) Readline(prompt string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}
func (r scanReader) Close() error { return nil }

func newLineReader() lineReader {
	if rl, err := readline.New("pagedb> "); err == nil {
		return rlReader{rl: rl}
	}
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1024), 4*1024*1024)
	return scanReader{sc: sc}
}

func runREPL(sess *session.EngineSession) error {
	lr := newLineReader()
	defer lr.Close()
	return runREPLWith(lr, sess)
}

// runREPLWith drives the buffer-until-semicolon loop over an arbitrary
// lineReader, so tests can script it without a real terminal or file.
func runREPLWith(lr lineReader, sess *session.EngineSession) error {
	var buf strings.Builder
	for {
		prompt := "pagedb> "
		if buf.Len() > 0 {
			prompt = "     -> "
		}
		line, err := lr.Readline(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		if !strings.HasSuffix(trimmed, ";") {
			continue
		}

		stmtText := strings.TrimSuffix(strings.TrimSpace(buf.String()), ";")
		buf.Reset()

		stmt, err := sql.Parse(stmtText)
		if err != nil {
			fmt.Println("Error:", err)
			continue
		}

		rs, err := sess.Execute(stmt)
		if err != nil {
			if errors.Is(err, session.ErrQuit) {
				return nil
			}
			fmt.Println("Error:", err)
			continue
		}
		printResult(rs)
	}
}

func printResult(rs *exec.ResultSet) {
	if rs.Cols != nil {
		fmt.Print(exec.FormatResultSet(rs))
		return
	}
	fmt.Println(exec.FormatStatus(rs))
}

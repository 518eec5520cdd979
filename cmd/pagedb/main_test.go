package main

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"pagedb/internal/session"
)

// scriptReader is a lineReader stub that plays back a fixed list of lines,
// standing in for readline.Instance/bufio.Scanner in tests that don't have
// a real terminal or piped file to read from.
type scriptReader struct {
	lines []string
	pos   int
}

func (r *scriptReader) Readline(prompt string) (string, error) {
	if r.pos >= len(r.lines) {
		return "", io.EOF
	}
	line := r.lines[r.pos]
	r.pos++
	return line, nil
}

func (r *scriptReader) Close() error { return nil }

func TestRunREPLEndToEnd(t *testing.T) {
	dir := t.TempDir()
	log := logrus.New()
	log.SetOutput(io.Discard)

	sess := session.New(dir, log, io.Discard)
	defer sess.Close()

	lr := &scriptReader{lines: []string{
		"CREATE DATABASE shop;",
		"CREATE TABLE items (id INT, name CHAR(8), PRIMARY KEY (id));",
		"INSERT INTO items VALUES(1, 'widget');",
		"SELECT id, name FROM items WHERE id = 1;",
		"QUIT;",
	}}

	err := runREPLWith(lr, sess)
	require.NoError(t, err)

	name, ok := sess.Current()
	require.True(t, ok)
	require.Equal(t, "shop", name)
}

func TestRunREPLBuffersMultilineStatement(t *testing.T) {
	dir := t.TempDir()
	log := logrus.New()
	log.SetOutput(io.Discard)

	sess := session.New(dir, log, io.Discard)
	defer sess.Close()

	lr := &scriptReader{lines: []string{
		"CREATE DATABASE shop;",
		"CREATE TABLE items (",
		"  id INT,",
		"  PRIMARY KEY (id)",
		");",
		"-- a comment line, skipped entirely",
		"INSERT INTO items VALUES(1);",
		"QUIT;",
	}}

	err := runREPLWith(lr, sess)
	require.NoError(t, err)
}

func TestRunREPLReportsParseErrorAndContinues(t *testing.T) {
	dir := t.TempDir()
	log := logrus.New()
	log.SetOutput(io.Discard)

	sess := session.New(dir, log, io.Discard)
	defer sess.Close()

	lr := &scriptReader{lines: []string{
		"CREATE DATABASE shop;",
		"THIS IS NOT SQL;",
		"QUIT;",
	}}

	err := runREPLWith(lr, sess)
	require.NoError(t, err)
}

func TestRunREPLExitsCleanlyOnEOF(t *testing.T) {
	dir := t.TempDir()
	sess := session.New(dir, nil, io.Discard)
	defer sess.Close()

	lr := &scriptReader{lines: []string{"CREATE DATABASE shop;"}}
	err := runREPLWith(lr, sess)
	require.NoError(t, err)
}

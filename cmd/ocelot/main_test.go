package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocelot/internal/catalog"
	"ocelot/internal/exec"
	"ocelot/internal/output"
	"ocelot/internal/sql"
)

func runScript(t *testing.T, dir, script string) (string, string) {
	t.Helper()
	cat := catalog.New(dir, nil)
	defer func() { _ = cat.Close() }()
	formatter, err := output.NewFormatter("")
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	repl(strings.NewReader(script), &out, &errOut, &replOpts{
		parser:    sql.NewParser(),
		executor:  exec.New(cat, nil),
		formatter: formatter,
	})
	return out.String(), errOut.String()
}

func TestReplExecutesStatements(t *testing.T) {
	out, errOut := runScript(t, t.TempDir(), `
CREATE TABLE foo (id INT, name TEXT)

INSERT INTO foo VALUES (1, 'a')
SELECT * FROM foo
quit
SELECT * FROM foo
`)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "created foo")
	assert.Contains(t, out, "successfully returned 1 rows")
	// Nothing after quit runs.
	assert.Equal(t, 1, strings.Count(out, "successfully returned 1 rows"))
}

func TestReplLowercasesInput(t *testing.T) {
	out, errOut := runScript(t, t.TempDir(), "CREATE TABLE Upper (Id INT)\nSHOW TABLES\n")
	assert.Empty(t, errOut)
	assert.Contains(t, out, `"upper"`)
}

func TestReplContinuesAfterErrors(t *testing.T) {
	out, errOut := runScript(t, t.TempDir(), `
select * from missing
this is not sql
create table foo (id int)
`)
	assert.Contains(t, errOut, "unknown table")
	assert.Contains(t, errOut, "parse error")
	assert.Contains(t, out, "created foo")
}

func TestRootCommandRejectsMissingDir(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"/definitely/not/a/dir"})
	cmd.SetIn(strings.NewReader("quit\n"))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	assert.Error(t, cmd.Execute())
}

func TestRootCommandRunsAgainstDir(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{t.TempDir()})
	cmd.SetIn(strings.NewReader("show tables\nquit\n"))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "0 rows")
}

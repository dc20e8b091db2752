package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const louie34 = "1a5ec39c-f1fd-495b-9346-e1a47ea7d684"

// lockedBuffer is shared by the command and the execution service's logger.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// runCLI runs the root command against a transient database.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	out, errOut := &bytes.Buffer{}, &lockedBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append(args, "--name", ":memory:"))

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// decode parses a JSON CLIResponse whose data has the shape of v.
func decode(t *testing.T, stdout string, v any) string {
	t.Helper()

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	if v != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	if resp.Error != nil {
		return resp.Error.Code
	}
	return resp.Status
}

func TestGet_Text(t *testing.T) {
	stdout, _, err := runCLI(t, "get", "users")

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "(6 rows)", lines[6])
	assert.Contains(t, lines[0], `"name":"Louie"`)
}

func TestGet_Conditions(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"and", []string{"--where", "age:>=:34"}, 4},
		{"or in order", []string{"--where", "age:=:33", "--or-where", "age:=:35"}, 4},
		{"raw", []string{"--raw", "age < 34"}, 2},
		{"and then raw", []string{"--where", "name:=:Louie", "--raw", "age = 35"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"get", "users", "--format", "json"}, tt.args...)
			stdout, _, err := runCLI(t, args...)
			require.NoError(t, err)

			var rows []map[string]any
			assert.Equal(t, "ok", decode(t, stdout, &rows))
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestGet_LeadingOrIsUsageError(t *testing.T) {
	stdout, _, err := runCLI(t, "get", "users", "--or-where", "age:=:33", "--format", "json")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, CodeUsage, decode(t, stdout, nil))
}

func TestGet_BadConditionFlag(t *testing.T) {
	_, _, err := runCLI(t, "get", "users", "--where", "age")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "column:operator:value")
}

func TestFind(t *testing.T) {
	stdout, _, err := runCLI(t, "find", "users", louie34, "--format", "json")
	require.NoError(t, err)

	var res struct {
		Result bool           `json:"result"`
		Data   map[string]any `json:"data"`
	}
	assert.Equal(t, "ok", decode(t, stdout, &res))
	assert.True(t, res.Result)
	assert.Equal(t, louie34, res.Data["id"])
	assert.Equal(t, float64(34), res.Data["age"])
}

func TestFind_Missing(t *testing.T) {
	stdout, _, err := runCLI(t, "find", "users", "nope")

	require.NoError(t, err)
	assert.Equal(t, "(0 rows)\n", stdout)
}

func TestFind_QuotedIDInlineAndBound(t *testing.T) {
	stdout, _, err := runCLI(t, "find", "users", "O'Brien")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E_SERVICE]")

	stdout, _, err = runCLI(t, "find", "users", "O'Brien", "--bound-reads")
	require.NoError(t, err)
	assert.Equal(t, "(0 rows)\n", stdout)
}

func TestPaginate(t *testing.T) {
	stdout, _, err := runCLI(t, "paginate", "users", "--per-page", "4", "--page", "2", "--format", "json")
	require.NoError(t, err)

	var page struct {
		CurrentPage int              `json:"current_page"`
		PerPage     int              `json:"per_page"`
		Total       int              `json:"total"`
		Data        []map[string]any `json:"data"`
	}
	assert.Equal(t, "ok", decode(t, stdout, &page))
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 4, page.PerPage)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Data, 2)
}

func TestPaginate_Text(t *testing.T) {
	stdout, _, err := runCLI(t, "paginate", "users", "--where", "age:=:33", "--per-page", "1")

	require.NoError(t, err)
	assert.Contains(t, stdout, "(1 rows)\npage 1, 1 per page\n")
}

func TestPaginate_InvalidPage(t *testing.T) {
	_, _, err := runCLI(t, "paginate", "users", "--page", "0")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid query")
}

func TestCreate_GeneratesID(t *testing.T) {
	stdout, _, err := runCLI(t, "create", "users", "--data", `{"name":"Ada","age":36}`, "--format", "json")
	require.NoError(t, err)

	var res struct {
		Result bool           `json:"result"`
		Data   map[string]any `json:"data"`
	}
	assert.Equal(t, "ok", decode(t, stdout, &res))
	assert.True(t, res.Result)
	assert.Equal(t, "Ada", res.Data["name"])
	assert.Len(t, res.Data["id"], 36)
}

func TestCreate_RequiresData(t *testing.T) {
	for _, data := range []string{"", "null", "{}", "[1]"} {
		_, _, err := runCLI(t, "create", "users", "--data", data)
		require.Error(t, err, data)
		assert.Equal(t, ExitCommandError, GetExitCode(err), data)
	}
}

func TestCreate_DuplicateIsRejected(t *testing.T) {
	stdout, _, err := runCLI(t, "create", "orders", "--data", `{"id":"o-1","type":"SALES_ORDER","order_number":"SO-1"}`)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "UNIQUE")
}

func TestUpdate(t *testing.T) {
	stdout, _, err := runCLI(t, "update", "users", louie34, "--data", `{"age":40}`, "--format", "json")
	require.NoError(t, err)

	var res struct {
		Data map[string]any `json:"data"`
	}
	assert.Equal(t, "ok", decode(t, stdout, &res))
	assert.Equal(t, float64(40), res.Data["age"])
	assert.Equal(t, "Louie", res.Data["name"])
}

func TestDelete(t *testing.T) {
	stdout, _, err := runCLI(t, "delete", "users", louie34, "--format", "json")
	require.NoError(t, err)

	var res struct {
		Result bool           `json:"result"`
		Data   map[string]any `json:"data"`
	}
	assert.Equal(t, "ok", decode(t, stdout, &res))
	assert.True(t, res.Result)
	assert.Nil(t, res.Data)
}

func TestExec(t *testing.T) {
	stdout, _, err := runCLI(t, "exec", "SELECT count(*) AS n FROM orders WHERE type = ?", "SALES_ORDER")

	require.NoError(t, err)
	assert.Equal(t, "{\"n\":5}\n(1 rows)\n", stdout)
}

func TestExec_ServiceError(t *testing.T) {
	stdout, _, err := runCLI(t, "exec", "SELEC nonsense", "--format", "json")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, CodeService, decode(t, stdout, nil))
}

func TestVerboseReportsMetrics(t *testing.T) {
	_, stderr, err := runCLI(t, "get", "users", "-v")

	require.NoError(t, err)
	assert.Contains(t, stderr, "sql: SELECT * FROM users")
	assert.Contains(t, stderr, `dobby_bridge_requests_total{outcome="ok",tag="execute"} 1`)
	assert.Contains(t, stderr, `dobby_bridge_requests_total{outcome="ok",tag="initialize"} 1`)
}

func TestDebugLogsStatements(t *testing.T) {
	_, stderr, err := runCLI(t, "get", "users", "--where", "age:>:34", "--debug")

	require.NoError(t, err)
	assert.Contains(t, stderr, "SELECT * FROM users WHERE age > '34'")
	assert.Contains(t, stderr, "service status")
}

func TestCustomSchema(t *testing.T) {
	stdout, _, err := runCLI(t, "get", "notes", "--schema", "../harness/testdata/scenarios/notes.cue")

	require.NoError(t, err)
	assert.Contains(t, stdout, "rows)")
}

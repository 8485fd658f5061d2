package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/authlab/audit"
)

// buildLog returns n well-formed audit lines one second apart.
func buildLog(t *testing.T, n int) []string {
	t.Helper()
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		rec := audit.Record{
			TS:     audit.Timestamp(time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC)),
			IP:     "127.0.0.1",
			Result: "invalid",
			Reason: "bad_password",
			Route:  "/login",
		}
		if i%2 == 0 {
			rec.Username = audit.Name(fmt.Sprintf("user-%d", i))
			rec.UserExists = true
		}
		b, err := json.Marshal(rec)
		require.NoError(t, err)
		lines[i] = string(b)
	}
	return lines
}

func verifyLines(t *testing.T, lines []string) verifyResult {
	t.Helper()
	result, err := verifyAuditLog(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	return result
}

func findCheck(t *testing.T, result verifyResult, name string) checkResult {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s check in %+v", name, result.Checks)
	return checkResult{}
}

func TestVerify_ValidLog(t *testing.T) {
	result := verifyLines(t, buildLog(t, 5))

	assert.True(t, result.Valid)
	assert.Equal(t, 5, result.EntryCount)
	for _, c := range result.Checks {
		assert.Equal(t, "pass", c.Status, "check %s", c.Name)
	}
}

func TestVerify_EmptyLog(t *testing.T) {
	result, err := verifyAuditLog(strings.NewReader("\n\n"))
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, 0, result.EntryCount)
	require.Len(t, result.Checks, 1)
	assert.Equal(t, "empty_log", result.Checks[0].Name)
}

func TestVerify_UnparseableLine(t *testing.T) {
	lines := buildLog(t, 3)
	lines[1] = `{"ts": "2025-01-01T00:00:01.000000Z",`

	result := verifyLines(t, lines)

	assert.False(t, result.Valid)
	assert.Equal(t, 2, result.EntryCount)
	c := findCheck(t, result, "parseable_lines")
	assert.Equal(t, "fail", c.Status)
	assert.Contains(t, c.Detail, "line 2")
}

func TestVerify_MissingField(t *testing.T) {
	lines := buildLog(t, 3)
	var e map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &e))
	delete(e, "route")
	b, _ := json.Marshal(e)
	lines[2] = string(b)

	result := verifyLines(t, lines)

	assert.False(t, result.Valid)
	c := findCheck(t, result, "required_fields")
	assert.Equal(t, "fail", c.Status)
	assert.Contains(t, c.Detail, `entry 2 is missing "route"`)
}

func TestVerify_NullUsernameAndMetaAreAllowed(t *testing.T) {
	lines := buildLog(t, 2)
	assert.Contains(t, lines[1], `"username":null`)
	assert.Contains(t, lines[1], `"meta":null`)

	result := verifyLines(t, lines)
	assert.True(t, result.Valid)
}

func TestVerify_NonUTCTimestamp(t *testing.T) {
	lines := buildLog(t, 3)
	lines[1] = strings.Replace(lines[1], "2025-01-01T00:00:01.000000Z", "2025-01-01T00:00:01+02:00", 1)

	result := verifyLines(t, lines)

	assert.False(t, result.Valid)
	c := findCheck(t, result, "utc_timestamps")
	assert.Equal(t, "fail", c.Status)
	assert.Contains(t, c.Detail, "entry 1")
}

func TestVerify_NonMonotonicTimestamps(t *testing.T) {
	lines := buildLog(t, 3)
	lines[2] = strings.Replace(lines[2], "2025-01-01T00:00:02", "2024-12-31T23:59:59", 1)

	result := verifyLines(t, lines)

	// Ordering produces a warning, not a failure.
	assert.True(t, result.Valid)
	c := findCheck(t, result, "monotonic_timestamps")
	assert.Equal(t, "warn", c.Status)
	assert.Contains(t, c.Detail, "entry 2")
}

func TestPrintHumanResult(t *testing.T) {
	lines := buildLog(t, 2)
	lines = append(lines, "not json")
	result := verifyLines(t, lines)
	result.File = "authlab.log"

	var buf bytes.Buffer
	printHumanResult(&buf, result)

	out := buf.String()
	assert.Contains(t, out, "Audit log verification: authlab.log")
	assert.Contains(t, out, "[FAIL] parseable_lines: line 3")
	assert.Contains(t, out, "[PASS] required_fields")
	assert.Contains(t, out, "Result: INVALID (1 error(s), 0 warning(s))")
}

func TestPrintJSONResult(t *testing.T) {
	result := verifyLines(t, buildLog(t, 2))
	result.File = "/tmp/authlab.log"

	var buf bytes.Buffer
	require.NoError(t, printJSONResult(&buf, result))

	var decoded verifyResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, result, decoded)
}

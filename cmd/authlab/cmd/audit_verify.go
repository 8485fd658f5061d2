package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/authlab/audit"
)

// requiredFields must be present on every line. username and meta may be
// null but not missing.
var requiredFields = []string{"ts", "ip", "username", "user_exists", "result", "reason", "route", "meta"}

type verifyResult struct {
	File       string        `json:"file"`
	EntryCount int           `json:"entry_count"`
	Valid      bool          `json:"valid"`
	Checks     []checkResult `json:"checks"`
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pass", "fail", "warn"
	Detail string `json:"detail,omitempty"`
}

func (r *verifyResult) add(name string, failure string, warn bool) {
	switch {
	case failure == "":
		r.Checks = append(r.Checks, checkResult{Name: name, Status: "pass"})
	case warn:
		r.Checks = append(r.Checks, checkResult{Name: name, Status: "warn", Detail: failure})
	default:
		r.Valid = false
		r.Checks = append(r.Checks, checkResult{Name: name, Status: "fail", Detail: failure})
	}
}

// verifyAuditLog checks every line of an audit log. Only the first problem
// of each kind is reported.
func verifyAuditLog(r io.Reader) (verifyResult, error) {
	result := verifyResult{Valid: true}

	var entries []map[string]json.RawMessage
	var parseFail string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			if parseFail == "" {
				parseFail = fmt.Sprintf("line %d: %v", lineNo, err)
			}
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return result, err
	}
	result.EntryCount = len(entries)

	if len(entries) == 0 && parseFail == "" {
		result.Checks = append(result.Checks, checkResult{
			Name: "empty_log", Status: "pass", Detail: "no entries to verify",
		})
		return result, nil
	}

	// 1. Every line is a JSON object.
	result.add("parseable_lines", parseFail, false)

	// 2. Required fields.
	var fieldFail string
fields:
	for i, e := range entries {
		for _, f := range requiredFields {
			if _, ok := e[f]; !ok {
				fieldFail = fmt.Sprintf("entry %d is missing %q", i, f)
				break fields
			}
		}
	}
	result.add("required_fields", fieldFail, false)

	// 3. UTC timestamps in the audit layout.
	times := make([]time.Time, len(entries))
	parsed := make([]bool, len(entries))
	var tsFail string
	for i, e := range entries {
		var ts string
		if err := json.Unmarshal(e["ts"], &ts); err != nil {
			if tsFail == "" {
				tsFail = fmt.Sprintf("entry %d has a non-string ts", i)
			}
			continue
		}
		t, err := time.Parse(audit.TimeLayout, ts)
		if err != nil {
			if tsFail == "" {
				tsFail = fmt.Sprintf("entry %d ts=%q is not %s", i, ts, audit.TimeLayout)
			}
			continue
		}
		times[i], parsed[i] = t, true
	}
	result.add("utc_timestamps", tsFail, false)

	// 4. Monotonic timestamps. Concurrent requests can append slightly out
	// of order, so this only warns.
	var orderWarn string
	var prev time.Time
	for i := range entries {
		if !parsed[i] {
			continue
		}
		if !prev.IsZero() && times[i].Before(prev) {
			orderWarn = fmt.Sprintf("entry %d is earlier than the entry before it", i)
			break
		}
		prev = times[i]
	}
	result.add("monotonic_timestamps", orderWarn, true)

	return result, nil
}

func printHumanResult(out io.Writer, result verifyResult) {
	fmt.Fprintf(out, "Audit log verification: %s\n", result.File)
	fmt.Fprintf(out, "Entries: %d\n\n", result.EntryCount)

	failures, warnings := 0, 0
	for _, c := range result.Checks {
		tag := "[PASS]"
		switch c.Status {
		case "fail":
			tag = "[FAIL]"
			failures++
		case "warn":
			tag = "[WARN]"
			warnings++
		}
		if c.Detail != "" {
			fmt.Fprintf(out, "%s %s: %s\n", tag, c.Name, c.Detail)
		} else {
			fmt.Fprintf(out, "%s %s\n", tag, c.Name)
		}
	}

	fmt.Fprintln(out)
	if result.Valid {
		fmt.Fprintln(out, "Result: VALID")
	} else {
		fmt.Fprintf(out, "Result: INVALID (%d error(s), %d warning(s))\n", failures, warnings)
	}
}

func printJSONResult(out io.Writer, result verifyResult) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

var verifyJSONOutput bool

var verifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Verify the structure of an audit log",
	Long: `Reads an audit log (one JSON record per line, as written to LOG_DIR/authlab.log)
and checks that every line parses, carries the required fields and has a UTC
timestamp, and that timestamps do not go backwards.

Exits 1 when the log is invalid and 2 when it cannot be read.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	auditCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifyJSONOutput, "json", false, "Output results as JSON")
}

func runVerify(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	f, err := os.Open(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read file: %v\n", err)
		os.Exit(2)
	}
	defer f.Close()

	result, err := verifyAuditLog(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	result.File = filePath

	out := cmd.OutOrStdout()
	if verifyJSONOutput {
		if err := printJSONResult(out, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	} else {
		printHumanResult(out, result)
	}

	if !result.Valid {
		os.Exit(1)
	}
	return nil
}

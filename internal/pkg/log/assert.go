package log

import (
	"reflect"
	"strings"

	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"

	"github.com/keboola/lockstep-cluster/internal/pkg/encoding/json"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

type jsonRecord struct {
	line   string
	fields map[string]any
}

// CompareJSONMessages checks that the expected JSON lines match the actual lines in the same order.
// The actual output may contain extra lines and extra fields, string values are compared using wildcards, e.g. %s.
func CompareJSONMessages(expected string, actual string) error {
	expectedRecords, err := parseJSONLines(expected)
	if err != nil {
		return errors.PrefixError(err, "expected string contains invalid json")
	}
	actualRecords, err := parseJSONLines(actual)
	if err != nil {
		return errors.PrefixError(err, "actual string contains invalid json")
	}

	next := 0
	for _, exp := range expectedRecords {
		found := false
		for next < len(actualRecords) {
			act := actualRecords[next]
			next++
			if recordMatches(exp, act) {
				found = true
				break
			}
		}
		if !found {
			var rest strings.Builder
			for _, act := range actualRecords {
				rest.WriteString(act.line)
				rest.WriteString("\n")
			}
			return errors.Errorf("Expected:\n-----\n%s\n-----\nActual:\n-----\n%s", exp.line, strings.TrimRight(rest.String(), "\n"))
		}
	}
	return nil
}

func AssertJSONMessages(t assert.TestingT, expected string, actual string, msgAndArgs ...any) bool {
	if err := CompareJSONMessages(expected, actual); err != nil {
		return assert.Fail(t, err.Error(), msgAndArgs...)
	}
	return true
}

func parseJSONLines(str string) ([]jsonRecord, error) {
	var out []jsonRecord
	for _, line := range strings.Split(strings.Trim(str, "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		record := jsonRecord{line: line}
		if err := json.DecodeString(line, &record.fields); err != nil {
			return nil, errors.Errorf("%s:\n%s", err.Error(), line)
		}
		out = append(out, record)
	}
	return out, nil
}

func recordMatches(expected, actual jsonRecord) bool {
	for key, value := range expected.fields {
		actualValue, ok := actual.fields[key]
		if !ok {
			return false
		}
		if str, ok := value.(string); ok {
			actualStr, ok := actualValue.(string)
			if !ok || wildcards.Compare(str, actualStr) != nil {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(value, actualValue) {
			return false
		}
	}
	return true
}

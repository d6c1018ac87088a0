// nolint:forbidigo // allow usage of the "zap" package
package log

import (
	"bufio"
	"io"
	"strings"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/keboola/lockstep-cluster/internal/pkg/encoding/json"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/ioutil"
)

type debugLogger struct {
	*zapLogger
	all *ioutil.AtomicWriter
}

// NewDebugLogger returns logger which stores all messages in JSON format, see DebugLogger interface.
func NewDebugLogger() DebugLogger {
	all := ioutil.NewAtomicWriter()
	core := zapcore.NewCore(jsonEncoder(), all, DebugLevel)
	return &debugLogger{zapLogger: loggerFromZapCore(core), all: all}
}

// ConnectTo streams all logs also to the writer, it is useful for debugging tests.
func (l *debugLogger) ConnectTo(writer io.Writer) {
	l.all.ConnectTo(writer)
}

func (l *debugLogger) Truncate() {
	l.all.Truncate()
}

// AllMessages returns all records in the JSON format, one per line.
func (l *debugLogger) AllMessages() string {
	return l.all.String()
}

// AllMessagesTxt returns all records in the "LEVEL  message" format.
func (l *debugLogger) AllMessagesTxt() string {
	return l.messagesTxt(func(string) bool { return true })
}

func (l *debugLogger) ErrorMessages() string {
	return l.messagesTxt(func(level string) bool { return level == "error" })
}

func (l *debugLogger) CompareJSONMessages(expected string) error {
	return CompareJSONMessages(expected, l.AllMessages())
}

func (l *debugLogger) AssertJSONMessages(t assert.TestingT, expected string, msgAndArgs ...any) bool {
	return AssertJSONMessages(t, expected, l.AllMessages(), msgAndArgs...)
}

func (l *debugLogger) messagesTxt(filter func(level string) bool) string {
	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(l.AllMessages()))
	for scanner.Scan() {
		var record struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		}
		if err := json.DecodeString(scanner.Text(), &record); err != nil {
			panic(err)
		}
		if filter(record.Level) {
			out.WriteString(strings.ToUpper(record.Level))
			out.WriteString("  ")
			out.WriteString(record.Message)
			out.WriteString("\n")
		}
	}
	return out.String()
}

package dependencies

import (
	"io"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/service/common/servicectx"
	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
)

// baseScope dependencies container implements BaseScope interface.
type baseScope struct {
	logger    log.Logger
	telemetry telemetry.Telemetry
	process   *servicectx.Process
	stdout    io.Writer
	stderr    io.Writer
}

func NewBaseScope(logger log.Logger, tel telemetry.Telemetry, proc *servicectx.Process, stdout, stderr io.Writer) BaseScope {
	return newBaseScope(logger, tel, proc, stdout, stderr)
}

func newBaseScope(logger log.Logger, tel telemetry.Telemetry, proc *servicectx.Process, stdout, stderr io.Writer) *baseScope {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &baseScope{
		logger:    logger,
		telemetry: tel,
		process:   proc,
		stdout:    stdout,
		stderr:    stderr,
	}
}

func (v *baseScope) Logger() log.Logger {
	return v.logger
}

func (v *baseScope) Telemetry() telemetry.Telemetry {
	return v.telemetry
}

func (v *baseScope) Process() *servicectx.Process {
	return v.process
}

func (v *baseScope) Stdout() io.Writer {
	return v.stdout
}

func (v *baseScope) Stderr() io.Writer {
	return v.stderr
}

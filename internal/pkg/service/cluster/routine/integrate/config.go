package integrate

import (
	"math"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const (
	FunctionQuarterCircle = Function("quarterCircle")
	FunctionSquare        = Function("square")
	FunctionSin           = Function("sin")
)

// Function is the name of an integrand, all ranks must use the same one.
type Function string

// Config of the integration, it must be same on all ranks, it is not sent with the command.
type Config struct {
	Function  Function `configKey:"function" validate:"required,oneof=quarterCircle square sin" configUsage:"Integrated function: quarterCircle, square or sin."`
	Lower     float64  `configKey:"lower" configUsage:"Lower bound of the integration."`
	Upper     float64  `configKey:"upper" configUsage:"Upper bound of the integration."`
	Intervals int      `configKey:"intervals" validate:"min=1" configUsage:"Number of intervals, they are split between ranks."`
}

// NewConfig returns the default configuration, the integral of 4*sqrt(1-x^2) over [0, 1] is Pi.
func NewConfig() Config {
	return Config{
		Function:  FunctionQuarterCircle,
		Lower:     0,
		Upper:     1,
		Intervals: 1_000_000,
	}
}

func (c Config) Validate() error {
	if c.Upper < c.Lower {
		return errors.Errorf("upper bound %g must be greater than or equal to the lower bound %g", c.Upper, c.Lower)
	}
	return nil
}

func (f Function) fn() (func(x float64) float64, error) {
	switch f {
	case FunctionQuarterCircle:
		return func(x float64) float64 { return 4 * math.Sqrt(math.Max(0, 1-x*x)) }, nil
	case FunctionSquare:
		return func(x float64) float64 { return x * x }, nil
	case FunctionSin:
		return math.Sin, nil
	default:
		return nil, errors.Errorf(`unknown function "%s"`, f)
	}
}

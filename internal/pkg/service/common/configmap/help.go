package configmap

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/keboola/lockstep-cluster/internal/pkg/env"
)

type HelpError struct {
	Help string
}

func (h HelpError) Error() string {
	return "help requested"
}

func newHelpError(name string, flags *pflag.FlagSet, spec BindSpec) HelpError {
	var b strings.Builder

	b.WriteString(fmt.Sprintf(`Usage of "%s":`, name))
	b.WriteString("\n")
	b.WriteString(flags.FlagUsages())
	b.WriteString("\n")
	b.WriteString(Usage(spec.EnvNaming))

	return HelpError{Help: b.String()}
}

// Usage describes the ENV naming, it is appended to the help of commands.
func Usage(naming *env.NamingConvention) string {
	var b strings.Builder
	b.WriteString("Configuration source priority: 1. flag, 2. ENV\n")
	if naming != nil {
		b.WriteString("Flags can also be defined as ENV variables.\n")
		b.WriteString(fmt.Sprintf("For example, the flag \"--foo-bar\" becomes the \"%s\" ENV.\n", naming.FlagToEnv("foo-bar")))
	}
	return b.String()
}

// Package configmap binds a configuration structure to flags and ENVs.
//
// Each field tagged by the "configKey" tag is mapped to a flag and to an ENV.
// Field can optionally have the "configUsage" and the "configShorthand" tags.
// Nested structures are mapped using a dot, for example "network.rootAddress",
// it becomes the "--network-root-address" flag and the "<PREFIX>NETWORK_ROOT_ADDRESS" ENV.
// Values are validated by the "validate" tag, see the go-playground/validator package.
package configmap

import (
	"encoding"
	"reflect"
	"strings"
	"time"

	"github.com/umisama/go-regexpcache"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const (
	configKeyTag       = "configKey"
	configUsageTag     = "configUsage"
	configShorthandTag = "configShorthand"
)

// field is a leaf of the configuration structure.
type field struct {
	path      []string
	usage     string
	shorthand string
	value     reflect.Value
}

func (f field) key() string {
	return strings.Join(f.path, ".")
}

func (f field) flagName() string {
	return fieldToFlagName(f.key())
}

// fieldToFlagName splits the key to words and joins them by a dash, "network.rootAddress" -> "network-root-address".
func fieldToFlagName(key string) string {
	words := regexpcache.MustCompile(`[A-Z]+[a-z0-9]*|[a-z0-9]+`).FindAllString(key, -1)
	return strings.ToLower(strings.Join(words, "-"))
}

// visit collects all leaf fields of the structure.
func visit(v any) ([]field, error) {
	value := reflect.ValueOf(v)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return nil, errors.Errorf(`cannot map type "%T": it is not a pointer to a struct`, v)
	}
	value = value.Elem()

	var out []field
	visitStruct(value, nil, &out)
	return out, nil
}

func visitStruct(value reflect.Value, path []string, out *[]field) {
	for i := 0; i < value.NumField(); i++ {
		structField := value.Type().Field(i)
		tag, found := structField.Tag.Lookup(configKeyTag)
		if !found || tag == "" || tag == "-" {
			continue
		}

		fieldPath := append(append([]string(nil), path...), tag)
		fieldValue := value.Field(i)
		if isNestedStruct(fieldValue) {
			visitStruct(fieldValue, fieldPath, out)
			continue
		}

		*out = append(*out, field{
			path:      fieldPath,
			usage:     structField.Tag.Get(configUsageTag),
			shorthand: structField.Tag.Get(configShorthandTag),
			value:     fieldValue,
		})
	}
}

func isNestedStruct(value reflect.Value) bool {
	if value.Kind() != reflect.Struct {
		return false
	}
	if _, ok := value.Interface().(time.Time); ok {
		return false
	}
	if _, ok := value.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return false
	}
	return true
}

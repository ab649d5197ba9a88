package cmdutil

import (
	"context"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
)

// Decoder decodes a source of configuration into KEY=VALUE pairs.
type Decoder interface {
	Decode() (map[string]string, error)
}

// EnvFile is a Decoder for a dotenv file.  A missing file decodes to nothing when Optional is
// set.
type EnvFile struct {
	Path     string
	Optional bool
}

// Decode implements Decoder.
func (f EnvFile) Decode() (map[string]string, error) {
	m, err := godotenv.Read(f.Path)
	if err != nil {
		if f.Optional && os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrapf(err, "read env file %s", f.Path)
	}
	return m, nil
}

// MapDecoder is a Decoder for a literal map; tests use it in place of the environment.
type MapDecoder map[string]string

// Decode implements Decoder.
func (m MapDecoder) Decode() (map[string]string, error) { return m, nil }

// ByteSize is a size in bytes that can be configured as "16MiB", "512k", or a bare number.
type ByteSize int64

// Populate fills object's env-tagged fields.  Tags look like `env:"KEY"`, `env:"KEY,required"`
// or `env:"KEY,default=VALUE"`.
//
// The process environment has precedence over the decoders; earlier decoders have precedence
// over later ones.
func Populate(object interface{}, decoders ...Decoder) error {
	values, err := decode(decoders)
	if err != nil {
		return err
	}
	return walk(reflect.ValueOf(object), false, func(_ reflect.StructField, tag *envTag) (string, error) {
		if v := os.Getenv(tag.key); v != "" {
			return v, nil
		}
		if v := values[tag.key]; v != "" {
			return v, nil
		}
		if tag.defaultValue == "" && tag.required {
			return "", errors.Errorf("%s: %s", envKeyNotSetWhenRequiredErr, tag.key)
		}
		return tag.defaultValue, nil
	})
}

// PopulateDefaults fills object's fields with their tag defaults only.  Tests use it to get a
// configuration without reading the environment.
func PopulateDefaults(object interface{}) error {
	return walk(reflect.ValueOf(object), false, func(_ reflect.StructField, tag *envTag) (string, error) {
		return tag.defaultValue, nil
	})
}

// Main populates appEnv and runs do, exiting non-zero if either fails.
func Main[T any](ctx context.Context, do func(context.Context, T) error, appEnv T, decoders ...Decoder) {
	if err := Populate(appEnv, decoders...); err != nil {
		ErrorAndExit("%v", err)
	}
	if err := do(ctx, appEnv); err != nil {
		ErrorAndExit("%v", err)
	}
	os.Exit(0)
}

const (
	cannotParseErr              = "cannot parse"
	envKeyNotSetWhenRequiredErr = "env key not set when required"
	expectedPointerErr          = "expected pointer"
	expectedStructErr           = "expected struct"
	fieldTypeNotAllowedErr      = "field type not allowed"
	invalidTagErr               = "invalid tag, must be KEY,{required},{default=DEFAULT_VALUE}"
)

// Types parsed from a single string rather than by their kind.
var knownTypes = map[reflect.Type]func(string) (any, error){
	reflect.TypeOf(time.Duration(0)): func(s string) (any, error) {
		return time.ParseDuration(s) //nolint:wrapcheck
	},
	reflect.TypeOf(ByteSize(0)): func(s string) (any, error) {
		n, err := units.RAMInBytes(s)
		return ByteSize(n), err //nolint:wrapcheck
	},
}

func decode(decoders []Decoder) (map[string]string, error) {
	env := make(map[string]string)
	for _, d := range decoders {
		sub, err := d.Decode()
		if err != nil {
			return nil, errors.EnsureStack(err)
		}
		for k, v := range sub {
			if _, ok := env[k]; !ok && v != "" {
				env[k] = v
			}
		}
	}
	return env, nil
}

// walk visits every env-tagged field of the struct v points to, recursing into nested structs,
// and sets each field to the parsed result of lookup.  Empty results leave the field alone.
func walk(v reflect.Value, recursive bool, lookup func(reflect.StructField, *envTag) (string, error)) error {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			if !recursive {
				return errors.Errorf("%s: nil %v", expectedPointerErr, v.Type())
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	} else if !recursive {
		return errors.Errorf("%s: %v", expectedPointerErr, v.Type())
	}
	if v.Kind() != reflect.Struct {
		return errors.Errorf("%s: %v", expectedStructErr, v.Type())
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		tag, err := getEnvTag(field)
		if err != nil {
			return err
		}
		if tag == nil {
			isStruct := field.Type.Kind() == reflect.Struct ||
				(field.Type.Kind() == reflect.Ptr && field.Type.Elem().Kind() == reflect.Struct)
			if isStruct {
				if err := walk(v.Field(i), true, lookup); err != nil {
					return err
				}
			}
			continue
		}
		raw, err := lookup(field, tag)
		if err != nil {
			return errors.Wrapf(err, "%v", v.Type())
		}
		if raw == "" {
			continue
		}
		parsed, err := parseField(field.Type, raw)
		if err != nil {
			return errors.Wrapf(err, "%s=%q", tag.key, raw)
		}
		v.Field(i).Set(parsed)
	}
	return nil
}

type envTag struct {
	key          string
	required     bool
	defaultValue string
}

func getEnvTag(field reflect.StructField) (*envTag, error) {
	tag := field.Tag.Get("env")
	if tag == "" {
		return nil, nil
	}
	key, rest, _ := strings.Cut(tag, ",")
	t := &envTag{key: key}
	if rest == "" {
		return t, nil
	}
	opt, value, hasValue := strings.Cut(strings.TrimSpace(rest), "=")
	switch opt {
	case "required":
		t.required = true
	case "default":
		if !hasValue {
			return nil, errors.Errorf("%s: %s", invalidTagErr, tag)
		}
		t.defaultValue = value
	default:
		return nil, errors.Errorf("%s: %s", invalidTagErr, tag)
	}
	return t, nil
}

func parseField(typ reflect.Type, value string) (reflect.Value, error) {
	if parse, ok := knownTypes[typ]; ok {
		x, err := parse(value)
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, cannotParseErr)
		}
		return reflect.ValueOf(x).Convert(typ), nil
	}
	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, cannotParseErr)
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, cannotParseErr)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, cannotParseErr)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, typ.Bits())
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, cannotParseErr)
		}
		out.SetFloat(f)
	case reflect.String:
		out.SetString(value)
	default:
		return reflect.Value{}, errors.Errorf("%s: %v", fieldTypeNotAllowedErr, typ)
	}
	return out, nil
}

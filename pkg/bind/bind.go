// Package bind decodes and validates HTTP request input into a struct.
package bind

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/shashiranjanraj/catalogsync/pkg/validate"
)

// Query fills the `query`-tagged fields of dest from r's query string and
// runs validation. Supported field types are string, []string, int, int64,
// float64 and pointers to the scalar types; a missing parameter leaves the
// field untouched. It returns the field errors, or nil when the input is
// valid. dest must be a pointer to a struct.
//
//	var q ProductQuery
//	if errs := bind.Query(r, &q); errs != nil {
//	    response.ValidationError(w, errs)
//	    return
//	}
func Query(r *http.Request, dest interface{}) map[string]string {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("bind: Query needs a pointer to a struct, got %T", dest))
	}
	rv = rv.Elem()
	rt := rv.Type()
	values := r.URL.Query()
	errs := map[string]string{}

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("query"), ",")
		if name == "" || name == "-" || !field.IsExported() {
			continue
		}
		raw, ok := values[name]
		if !ok || len(raw) == 0 {
			continue
		}
		if err := set(rv.Field(i), raw); err != nil {
			errs[name] = fmt.Sprintf("The %s field %s.", name, err.Error())
		}
	}

	if len(errs) > 0 {
		return errs
	}
	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs
	}
	return nil
}

func set(v reflect.Value, raw []string) error {
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.String {
		out := make([]string, 0, len(raw))
		for _, s := range raw {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		v.Set(reflect.ValueOf(out))
		return nil
	}

	s := strings.TrimSpace(raw[len(raw)-1])
	if v.Kind() == reflect.Ptr {
		if s == "" {
			return nil
		}
		elem := reflect.New(v.Type().Elem())
		if err := setScalar(elem.Elem(), s); err != nil {
			return err
		}
		v.Set(elem)
		return nil
	}
	return setScalar(v, s)
}

func setScalar(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int64:
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("must be an integer")
		}
		v.SetInt(n)
	case reflect.Float64:
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("has an unsupported type %s", v.Type())
	}
	return nil
}

package oasmux

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"time"
)

// ErrBind is wrapped by every extractor failure caused by the request.
var ErrBind = errors.New("bind request")

var (
	fileHeaderPtrType   = reflect.TypeOf((*multipart.FileHeader)(nil))
	fileHeaderSliceType = reflect.TypeOf([]*multipart.FileHeader(nil))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// bindJSON decodes the request body as exactly one JSON value into v,
// rejecting fields that do not map to exported struct fields.
func bindJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBind, err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected trailing data after JSON value", ErrBind)
	}

	return nil
}

// bindValues fills the exported fields of the struct behind ptr from
// lookup, resolving names with fieldName. Missing values leave fields
// untouched; required-ness is a documentation concern.
func bindValues(ptr any, tag string, lookup func(name string) []string) error {
	rv := reflect.ValueOf(ptr).Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s is not a struct", ErrBind, rv.Type())
	}
	return bindStruct(rv, tag, lookup)
}

func bindStruct(rv reflect.Value, tag string, lookup func(name string) []string) error {
	t := rv.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		fv := rv.Field(i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			if err := bindStruct(fv, tag, lookup); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() || f.Type == fileHeaderPtrType || f.Type == fileHeaderSliceType {
			continue
		}

		name, _ := fieldName(f, tag)
		if name == "" {
			continue
		}
		values := lookup(name)
		if len(values) == 0 {
			continue
		}
		if err := setField(fv, values); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBind, name, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, values []string) error {
	if fv.Kind() == reflect.Pointer {
		elem := reflect.New(fv.Type().Elem())
		if err := setField(elem.Elem(), values); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}

	if fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() != reflect.Uint8 {
		out := reflect.MakeSlice(fv.Type(), len(values), len(values))
		for i, s := range values {
			if err := setScalar(out.Index(i), s); err != nil {
				return err
			}
		}
		fv.Set(out)
		return nil
	}

	return setScalar(fv, values[0])
}

func setScalar(fv reflect.Value, s string) error {
	if fv.CanAddr() && fv.Addr().Type().Implements(textUnmarshalerType) {
		return fv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(s)
			if err != nil {
				return err
			}
			fv.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(s, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(s, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(n)
	case reflect.Slice:
		fv.SetBytes([]byte(s))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// bindFiles assigns uploaded files to file header fields.
func bindFiles(ptr any, files map[string][]*multipart.FileHeader) {
	rv := reflect.ValueOf(ptr).Elem()
	t := rv.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _ := fieldName(f, "form")
		headers := files[name]
		if name == "" || len(headers) == 0 {
			continue
		}
		switch f.Type {
		case fileHeaderPtrType:
			rv.Field(i).Set(reflect.ValueOf(headers[0]))
		case fileHeaderSliceType:
			rv.Field(i).Set(reflect.ValueOf(headers))
		}
	}
}

// WriteJSON encodes v as JSON and writes it with the given status code.
// If encoding fails, 500 Internal Server Error is written instead.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", MIMEJSON)
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

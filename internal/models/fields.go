package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedDocument is returned when a stored document does not have the expected shape.
var ErrMalformedDocument = errors.New("malformed document")

// decoder reads typed fields out of a raw document and keeps the first error.
type decoder struct {
	data map[string]any
	err  error
}

func (d *decoder) fail(field string, v any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: field %q has type %T", ErrMalformedDocument, field, v)
	}
}

func (d *decoder) str(field string) string {
	v, ok := d.data[field]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(field, v)
		return ""
	}
	return s
}

func (d *decoder) strings(field string) []string {
	v, ok := d.data[field]
	if !ok || v == nil {
		return []string{}
	}
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				d.fail(field, e)
				return []string{}
			}
			out = append(out, s)
		}
		return out
	default:
		d.fail(field, v)
		return []string{}
	}
}

// Timestamps written by older clients are RFC 3339 strings rather than native values.
func (d *decoder) time(field string) time.Time {
	v, ok := d.data[field]
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		if t == "" {
			return time.Time{}
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			if d.err == nil {
				d.err = fmt.Errorf("%w: field %q: %v", ErrMalformedDocument, field, err)
			}
			return time.Time{}
		}
		return parsed.UTC()
	default:
		d.fail(field, v)
		return time.Time{}
	}
}

func (d *decoder) optionalTime(field string) *time.Time {
	t := d.time(field)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (d *decoder) status(field string) Status {
	raw := d.str(field)
	s, err := ParseStatus(raw)
	if err != nil && d.err == nil {
		d.err = err
	}
	return s
}

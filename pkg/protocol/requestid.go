package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is a JSON-RPC id holding either an integer or a string. It is a
// comparable value and safe to use as a map key; NumberID(1) and
// StringID("1") are distinct ids. The zero value is the absent/null id.
type RequestID struct {
	num      int64
	str      string
	isString bool
	valid    bool
}

// NumberID returns an integer id
func NumberID(n int64) RequestID {
	return RequestID{num: n, valid: true}
}

// StringID returns a string id
func StringID(s string) RequestID {
	return RequestID{str: s, isString: true, valid: true}
}

// IsValid reports whether the id holds a value (it is not null/absent)
func (id RequestID) IsValid() bool {
	return id.valid
}

// IsString reports whether the id uses the string representation
func (id RequestID) IsString() bool {
	return id.valid && id.isString
}

// Number returns the integer value and whether the id is an integer
func (id RequestID) Number() (int64, bool) {
	return id.num, id.valid && !id.isString
}

// Text returns the string value and whether the id is a string
func (id RequestID) Text() (string, bool) {
	return id.str, id.IsString()
}

// String renders the id for logs. String ids are quoted so that 1 and "1"
// stay distinguishable.
func (id RequestID) String() string {
	switch {
	case !id.valid:
		return "null"
	case id.isString:
		return strconv.Quote(id.str)
	default:
		return strconv.FormatInt(id.num, 10)
	}
}

// MarshalJSON implements json.Marshaler
func (id RequestID) MarshalJSON() ([]byte, error) {
	switch {
	case !id.valid:
		return []byte("null"), nil
	case id.isString:
		return json.Marshal(id.str)
	default:
		return []byte(strconv.FormatInt(id.num, 10)), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = RequestID{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("JSON-RPC id must be an integer or a string, got: %s", string(data))
	}
	*id = NumberID(n)
	return nil
}

// ProgressToken identifies a work-done progress stream. It has the same
// integer-or-string shape as a request id.
type ProgressToken = RequestID

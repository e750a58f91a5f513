// Package jsonnode provides a read-only, path addressable view over decoded vendor JSON.
package jsonnode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Node is an immutable JSON value. The zero Node is a missing value.
type Node struct {
	v       any
	present bool
}

// Field is one member of a JSON object.
type Field struct {
	Name  string
	Value Node
}

// MissingFieldError reports a required field that was absent or of the wrong shape.
type MissingFieldError struct {
	Path   string
	Reason string
}

func (e *MissingFieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("required field %q missing", e.Path)
	}
	return fmt.Sprintf("required field %q %s", e.Path, e.Reason)
}

// Parse decodes raw JSON keeping numbers as literals.
func Parse(raw []byte) (Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Node{}, fmt.Errorf("jsonnode: empty document")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Node{}, fmt.Errorf("jsonnode: decode: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Node{}, fmt.Errorf("jsonnode: trailing data after the document")
	}
	return Node{v: v, present: true}, nil
}

// MustParse is Parse for literals in tests and tables.
func MustParse(raw string) Node {
	n, err := Parse([]byte(raw))
	if err != nil {
		panic(err)
	}
	return n
}

// Wrap builds a node from Go values. Nested Nodes, maps and slices are accepted.
func Wrap(v any) Node {
	return Node{v: unwrap(v), present: true}
}

func unwrap(v any) any {
	switch typed := v.(type) {
	case Node:
		if !typed.present {
			return nil
		}
		return typed.v
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = unwrap(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = unwrap(val)
		}
		return out
	case []Node:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = unwrap(val)
		}
		return out
	case int:
		return json.Number(strconv.Itoa(typed))
	case int64:
		return json.Number(strconv.FormatInt(typed, 10))
	case float64:
		return json.Number(strconv.FormatFloat(typed, 'f', -1, 64))
	default:
		return v
	}
}

// Exists reports whether the node was present in the document, null included.
func (n Node) Exists() bool { return n.present }

// IsNull reports whether the node is missing or JSON null.
func (n Node) IsNull() bool { return !n.present || n.v == nil }

// IsArray reports whether the node is a JSON array.
func (n Node) IsArray() bool {
	_, ok := n.v.([]any)
	return n.present && ok
}

// IsObject reports whether the node is a JSON object.
func (n Node) IsObject() bool {
	_, ok := n.v.(map[string]any)
	return n.present && ok
}

// Value exposes the decoded value.
func (n Node) Value() any { return n.v }

// Get resolves a dotted path. Numeric segments index into arrays.
func (n Node) Get(path string) Node {
	if path == "" {
		return n
	}
	cur := n
	for _, segment := range strings.Split(path, ".") {
		cur = cur.child(segment)
		if !cur.present {
			return Node{}
		}
	}
	return cur
}

func (n Node) child(segment string) Node {
	switch typed := n.v.(type) {
	case map[string]any:
		v, ok := typed[segment]
		if !ok {
			return Node{}
		}
		return Node{v: v, present: true}
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(typed) {
			return Node{}
		}
		return Node{v: typed[idx], present: true}
	default:
		return Node{}
	}
}

// Has reports whether path resolves to a non-null value.
func (n Node) Has(path string) bool {
	return !n.Get(path).IsNull()
}

// Index returns the i-th array element.
func (n Node) Index(i int) Node {
	arr, ok := n.v.([]any)
	if !ok || i < 0 || i >= len(arr) {
		return Node{}
	}
	return Node{v: arr[i], present: true}
}

// Len returns the element count of arrays and objects, and zero otherwise.
func (n Node) Len() int {
	switch typed := n.v.(type) {
	case []any:
		return len(typed)
	case map[string]any:
		return len(typed)
	default:
		return 0
	}
}

// IsEmpty is true for missing, null, empty string, empty array and empty object values.
func (n Node) IsEmpty() bool {
	if n.IsNull() {
		return true
	}
	switch typed := n.v.(type) {
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	default:
		return false
	}
}

// Array returns the elements of an array node.
func (n Node) Array() ([]Node, bool) {
	arr, ok := n.v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Node, len(arr))
	for i, v := range arr {
		out[i] = Node{v: v, present: true}
	}
	return out, true
}

// Fields returns object members ordered by name.
func (n Node) Fields() ([]Field, bool) {
	obj, ok := n.v.(map[string]any)
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Field, len(names))
	for i, name := range names {
		out[i] = Field{Name: name, Value: Node{v: obj[name], present: true}}
	}
	return out, true
}

// String returns string values and the literal text of numbers and booleans.
func (n Node) String() (string, bool) {
	switch typed := n.v.(type) {
	case string:
		return typed, true
	case json.Number:
		return typed.String(), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		return "", false
	}
}

// Int64 accepts integral numbers and numeric strings.
func (n Node) Int64() (int64, bool) {
	text, ok := n.numericText()
	if !ok {
		return 0, false
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, true
	}
	d, err := decimal.NewFromString(text)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	return d.IntPart(), true
}

// Float64 accepts numbers and numeric strings.
func (n Node) Float64() (float64, bool) {
	text, ok := n.numericText()
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	return v, err == nil
}

// Decimal accepts numbers and numeric strings without float rounding.
func (n Node) Decimal() (decimal.Decimal, bool) {
	text, ok := n.numericText()
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Bool accepts booleans and the strings "true" and "false".
func (n Node) Bool() (bool, bool) {
	switch typed := n.v.(type) {
	case bool:
		return typed, true
	case string:
		v, err := strconv.ParseBool(strings.TrimSpace(typed))
		return v, err == nil
	default:
		return false, false
	}
}

func (n Node) numericText() (string, bool) {
	switch typed := n.v.(type) {
	case json.Number:
		return typed.String(), true
	case string:
		s := strings.TrimSpace(typed)
		return s, s != ""
	default:
		return "", false
	}
}

// RequiredString reads a string at path or reports it missing.
func (n Node) RequiredString(path string) (string, error) {
	child := n.Get(path)
	if child.IsNull() {
		return "", &MissingFieldError{Path: path}
	}
	v, ok := child.String()
	if !ok {
		return "", &MissingFieldError{Path: path, Reason: "is not a string"}
	}
	return v, nil
}

// RequiredInt64 reads an integer at path or reports it missing.
func (n Node) RequiredInt64(path string) (int64, error) {
	child := n.Get(path)
	if child.IsNull() {
		return 0, &MissingFieldError{Path: path}
	}
	v, ok := child.Int64()
	if !ok {
		return 0, &MissingFieldError{Path: path, Reason: "is not an integer"}
	}
	return v, nil
}

// RequiredDecimal reads a number at path or reports it missing.
func (n Node) RequiredDecimal(path string) (decimal.Decimal, error) {
	child := n.Get(path)
	if child.IsNull() {
		return decimal.Decimal{}, &MissingFieldError{Path: path}
	}
	v, ok := child.Decimal()
	if !ok {
		return decimal.Decimal{}, &MissingFieldError{Path: path, Reason: "is not a number"}
	}
	return v, nil
}

// RequiredArray reads an array at path or reports it missing.
func (n Node) RequiredArray(path string) ([]Node, error) {
	child := n.Get(path)
	if child.IsNull() {
		return nil, &MissingFieldError{Path: path}
	}
	v, ok := child.Array()
	if !ok {
		return nil, &MissingFieldError{Path: path, Reason: "is not an array"}
	}
	return v, nil
}

// OptionalString reads a string at path, returning nil when absent.
func (n Node) OptionalString(path string) *string {
	v, ok := n.Get(path).String()
	if !ok {
		return nil
	}
	return &v
}

// OptionalInt64 reads an integer at path, returning nil when absent.
func (n Node) OptionalInt64(path string) *int64 {
	v, ok := n.Get(path).Int64()
	if !ok {
		return nil
	}
	return &v
}

// OptionalDecimal reads a number at path, returning nil when absent.
func (n Node) OptionalDecimal(path string) *decimal.Decimal {
	v, ok := n.Get(path).Decimal()
	if !ok {
		return nil
	}
	return &v
}

// OptionalBool reads a boolean at path, returning nil when absent.
func (n Node) OptionalBool(path string) *bool {
	v, ok := n.Get(path).Bool()
	if !ok {
		return nil
	}
	return &v
}

// MarshalJSON re-encodes the node. Missing nodes encode as null.
func (n Node) MarshalJSON() ([]byte, error) {
	if !n.present {
		return []byte("null"), nil
	}
	return json.Marshal(n.v)
}

// UnmarshalJSON decodes into the node keeping numbers as literals.
func (n *Node) UnmarshalJSON(raw []byte) error {
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

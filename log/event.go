package log

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/toon-format/toon-go"
)

// for readability each event record starts with "--- "
var eventHdrPrefix = []byte("--- ")

// marshalEvent serializes an event as:
//
//	--- <len> <unix-ms> <name>
//	<data>
//
// a newline is added after data if it doesn't end with one
func marshalEvent(name string, t time.Time, d []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(eventHdrPrefix) + len(name) + len(d) + 32)
	buf.Write(eventHdrPrefix)
	buf.WriteString(strconv.Itoa(len(d)))
	buf.WriteByte(' ')
	buf.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
	buf.WriteByte(' ')
	buf.WriteString(name)
	buf.WriteByte('\n')
	if n := len(d); n > 0 {
		buf.Write(d)
		if d[n-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// simpleTypeToStr converts simple types to string
// panics if v is of complex type
func simpleTypeToStr(v any) string {
	rt := reflect.TypeOf(v)
	kind := rt.Kind()
	switch kind {
	case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map, reflect.Chan, reflect.Interface, reflect.Pointer:
		panic(fmt.Sprintf("toStr: value is of kind %v", kind))
	case reflect.String:
		return v.(string)
	}
	return fmt.Sprintf("%v", v)
}

// EventData encodes key/value pairs in toon format
func EventData(vals ...any) ([]byte, error) {
	n := len(vals)
	if n%2 != 0 {
		return nil, fmt.Errorf("invalid number of args: %d. Should be multiple of 2", n)
	}
	if n == 0 {
		return nil, nil
	}
	m := map[string]any{}
	for i := 0; i < n; i += 2 {
		k := simpleTypeToStr(vals[i])
		m[k] = vals[i+1]
	}
	return toon.Marshal(m)
}

// Event logs a named event with key/value pairs to the events log
// e.g. Event("diary.save", "entries", 12, "bytes", 2048)
func Event(name string, vals ...any) {
	d, err := EventData(vals...)
	if err != nil {
		Errorf("log.Event('%s'): %s\n", name, err)
		return
	}
	rec := marshalEvent(name, time.Now().UTC(), d)
	Verbosef("event: %s", rec)
	mu.Lock()
	writeTo(eventsLog, string(rec))
	mu.Unlock()
}

// Package jsonutil formats values for printing to the console.
package jsonutil

import (
	"bytes"

	"github.com/fatih/structs"
	"github.com/hokaccha/go-prettyjson"
)

var (
	compact *prettyjson.Formatter
	indent  *prettyjson.Formatter
)

func init() {
	compact = prettyjson.NewFormatter()
	compact.Indent = 0
	compact.Newline = ""
	indent = prettyjson.NewFormatter()
}

// SetColor enables or disables terminal colors in the output.
func SetColor(enabled bool) {
	compact.DisabledColor = !enabled
	indent.DisabledColor = !enabled
}

// MarshalCompactPretty formats the struct v as one "Name: value" line per
// exported field, in declaration order. Values are written in compact JSON
// form with color information.
func MarshalCompactPretty(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	m := structs.Map(v)
	for _, name := range structs.Names(v) {
		val, ok := m[name]
		if !ok {
			continue
		}
		b, err := compact.Marshal(val)
		if err != nil {
			return nil, err
		}
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.Write(b)
		buf.WriteRune('\n')
	}
	return buf.Bytes(), nil
}

// MarshalPretty formats v as indented JSON with color information.
func MarshalPretty(v interface{}) ([]byte, error) {
	b, err := indent.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

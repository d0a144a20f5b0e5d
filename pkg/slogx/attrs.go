package slogx

import (
	"fmt"
	"log/slog"
	"reflect"
)

// KeyLoggerName is the attribute key naming the component that logged.
const KeyLoggerName = "logger"

// Error returns an "error" attribute holding the message of err.
// A nil error is rendered as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// ByteString returns an attribute holding value as a string, typically a
// rendered JSON document.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// Stringer returns an attribute holding value.String().
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// Type returns an attribute holding the name of a Go type, "<nil>" when typ is nil.
func Type(key string, typ reflect.Type) slog.Attr {
	if typ == nil {
		return slog.String(key, "<nil>")
	}
	return slog.String(key, typ.String())
}

// LoggerName returns the attribute naming the component that logged.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

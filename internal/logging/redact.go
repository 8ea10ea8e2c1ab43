package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/folio/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Secret logs a config.Secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs a value as its length only.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder masks fields whose key is listed in the redaction
// config, and string values matching any configured pattern.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps base with the given redaction rules.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	enc := &RedactingEncoder{Encoder: base, keys: map[string]struct{}{}}
	if !cfg.Enabled {
		return enc, nil
	}
	for _, f := range cfg.Fields {
		enc.keys[strings.ToLower(f)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		if len(p) > 200 {
			return nil, fmt.Errorf("redaction pattern too long (max 200 chars): %q", p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		enc.patterns = append(enc.patterns, re)
	}
	return enc, nil
}

func (e *RedactingEncoder) sensitive(key string) bool {
	_, ok := e.keys[strings.ToLower(key)]
	return ok
}

func (e *RedactingEncoder) AddString(key, val string) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	for _, re := range e.patterns {
		if re.MatchString(val) {
			e.Encoder.AddString(key, "[REDACTED:pattern]")
			return
		}
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddBinary(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// EncodeEntry masks per-entry fields; the embedded encoder would
// otherwise write them without passing through the Add* overrides.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	masked := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		masked[i] = e.mask(f)
	}
	return e.Encoder.EncodeEntry(ent, masked)
}

func (e *RedactingEncoder) mask(f zapcore.Field) zapcore.Field {
	if e.sensitive(f.Key) {
		return zap.String(f.Key, redacted)
	}
	if f.Type == zapcore.StringType {
		for _, re := range e.patterns {
			if re.MatchString(f.String) {
				return zap.String(f.Key, "[REDACTED:pattern]")
			}
		}
	}
	return f
}

// Clone shares the immutable rule set with the copy.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), keys: e.keys, patterns: e.patterns}
}

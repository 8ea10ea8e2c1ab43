// Package replication mirrors the conversation collection to a NATS
// JetStream key/value bucket and streams the bucket back as snapshots.
package replication

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned when pasted replication settings cannot be
// parsed or fail validation.
var ErrInvalidConfig = errors.New("invalid replication config")

// ExampleConfig is shown to the owner when a paste is rejected.
const ExampleConfig = `{"url": "nats://host:4222", "bucket": "conversations", "token": "optional"}`

// Config is the connection record an owner pastes into the admin page.
type Config struct {
	URL    string `json:"url" validate:"required,url"`
	Bucket string `json:"bucket" validate:"required,max=64,kvbucket"`
	Token  string `json:"token,omitempty"`
	// Name identifies this client in the server's connection list.
	Name string `json:"name,omitempty" validate:"omitempty,max=64"`
}

var (
	validate    = validator.New()
	bucketChars = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func init() {
	_ = validate.RegisterValidation("kvbucket", func(fl validator.FieldLevel) bool {
		return bucketChars.MatchString(fl.Field().String())
	})
}

// Validate checks required fields and formats.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !strings.HasPrefix(c.URL, "nats://") && !strings.HasPrefix(c.URL, "tls://") &&
		!strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		return fmt.Errorf("%w: url must use nats://, tls://, ws:// or wss://", ErrInvalidConfig)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return field + " must be a URL"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "kvbucket":
		return field + " may only contain letters, digits, '-' and '_'"
	default:
		return field + " is invalid"
	}
}

// ParseConfig accepts strict JSON or the looser object-literal form people
// copy out of dashboards and code: comments, a leading "const x =",
// a trailing semicolon, unquoted keys, single quotes and trailing commas.
// Blank input returns (nil, nil), meaning replication is off.
func ParseConfig(input string) (*Config, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	body := stripComments(input)
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: expected an object like %s", ErrInvalidConfig, ExampleConfig)
	}
	body = normalizeObject(body[start : end+1])

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v; expected an object like %s", ErrInvalidConfig, err, ExampleConfig)
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// stripComments removes // and /* */ comments outside string literals and
// rewrites single-quoted strings as double-quoted ones.
func stripComments(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			j := i + 1
			b.WriteByte('"')
			for ; j < len(s) && s[j] != c; j++ {
				switch {
				case s[j] == '\\' && j+1 < len(s) && s[j+1] == '\'' && c == '\'':
					// JSON has no \' escape.
					b.WriteByte('\'')
					j++
				case s[j] == '\\' && j+1 < len(s):
					b.WriteByte(s[j])
					b.WriteByte(s[j+1])
					j++
				case s[j] == '"' && c == '\'':
					b.WriteString(`\"`)
				default:
					b.WriteByte(s[j])
				}
			}
			b.WriteByte('"')
			i = j
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// normalizeObject quotes bare keys and drops trailing commas. Input has
// already been through stripComments, so every string is double-quoted.
func normalizeObject(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			j := i + 1
			for ; j < len(s) && s[j] != '"'; j++ {
				if s[j] == '\\' {
					j++
				}
			}
			if j >= len(s) {
				j = len(s) - 1
			}
			b.WriteString(s[i : j+1])
			i = j
		case c == ',':
			k := i + 1
			for k < len(s) && strings.IndexByte(" \t\r\n", s[k]) >= 0 {
				k++
			}
			if k < len(s) && (s[k] == '}' || s[k] == ']') {
				continue
			}
			b.WriteByte(c)
		case isIdentByte(c) && (i == 0 || !isIdentByte(s[i-1])):
			j := i
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			k := j
			for k < len(s) && strings.IndexByte(" \t\r\n", s[k]) >= 0 {
				k++
			}
			if k < len(s) && s[k] == ':' {
				b.WriteString(`"` + s[i:j] + `"`)
			} else {
				b.WriteString(s[i:j])
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

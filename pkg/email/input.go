package email

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zpam/spamscan/pkg/task"
)

// ErrMalformedInput is returned when a scan input is neither message bytes,
// text, a reader, nor a readable file path
var ErrMalformedInput = errors.New("malformed input")

// Path marks a string as a filesystem path rather than message content
type Path string

// Load turns a scan input into a Message. MIME parsing is tried first; if it
// fails the raw content becomes the Text field.
func (p *Parser) Load(input any) (Message, task.Source, error) {
	raw, err := readInput(input)
	if err != nil {
		return Message{}, task.Default, err
	}

	r := task.Resolve(
		func() (Message, bool) {
			msg, err := p.FromBytes(raw)
			return msg, err == nil
		},
		Message{},
		func() (Message, bool) {
			return Message{Text: string(raw)}, true
		},
	)
	return r.Value, r.Source, nil
}

func readInput(input any) ([]byte, error) {
	switch v := input.(type) {
	case []byte:
		if v == nil {
			return nil, fmt.Errorf("%w: nil byte slice", ErrMalformedInput)
		}
		return v, nil
	case string:
		return []byte(v), nil
	case Path:
		if v == "" {
			return nil, fmt.Errorf("%w: empty path", ErrMalformedInput)
		}
		data, err := os.ReadFile(string(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		return data, nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrMalformedInput, input)
	}
}

package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Encoder writes newline-delimited JSON messages. Safe for concurrent use;
// responses for one connection may be produced by different goroutines.
type Encoder struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode marshals v and writes it followed by a newline.
func (e *Encoder) Encode(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write message delimiter: %w", err)
	}
	return e.w.Flush()
}

// Decoder reads newline-delimited JSON messages.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads the next line and unmarshals it into v. Empty lines are
// skipped. Returns io.EOF when the stream ends cleanly.
func (d *Decoder) Decode(v interface{}) error {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			// A partial line before EOF is a truncated message.
			if err == io.EOF && strings.TrimSpace(line) != "" {
				return io.ErrUnexpectedEOF
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := json.Unmarshal([]byte(line), v); err != nil {
			return fmt.Errorf("malformed message: %w", err)
		}
		return nil
	}
}

package catalog

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"io"
	"iter"

	"stencil/internal/models"
	"stencil/internal/pkg/errors"
)

// ErrStreamConsumed is yielded when a TemplateStream is ranged over twice.
var ErrStreamConsumed = stderrors.New("catalog: template stream already consumed")

// TemplateStream yields templates as the catalog response body arrives.
// The body may be a JSON array or a sequence of JSON objects. A stream is
// single-use: range over All once, or call Close to abandon it.
type TemplateStream struct {
	op     string
	body   io.ReadCloser
	used   bool
	closed bool
}

func newTemplateStream(op string, body io.ReadCloser) *TemplateStream {
	return &TemplateStream{op: op, body: body}
}

// All returns an iterator over the stream. Decoding stops at the first
// error, which is yielded with a zero summary. The body is closed when
// iteration ends, including when the consumer breaks out early.
func (s *TemplateStream) All() iter.Seq2[models.TemplateSummary, error] {
	return func(yield func(models.TemplateSummary, error) bool) {
		if s.used {
			yield(models.TemplateSummary{}, ErrStreamConsumed)
			return
		}
		s.used = true
		defer s.Close()

		r := bufio.NewReader(s.body)
		first, err := peekNonSpace(r)
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(models.TemplateSummary{}, errors.Transport(s.op, err))
			return
		}

		dec := json.NewDecoder(r)
		if first == '[' {
			s.decodeArray(dec, yield)
			return
		}
		s.decodeObjects(dec, yield)
	}
}

// Collect drains the stream into a slice, preserving catalog order.
func (s *TemplateStream) Collect() ([]models.TemplateSummary, error) {
	out := []models.TemplateSummary{}
	for t, err := range s.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Close releases the underlying connection. It is safe to call more than once.
func (s *TemplateStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

func (s *TemplateStream) decodeArray(dec *json.Decoder, yield func(models.TemplateSummary, error) bool) {
	if _, err := dec.Token(); err != nil {
		yield(models.TemplateSummary{}, errors.Transport(s.op, err))
		return
	}

	for dec.More() {
		var t *models.TemplateSummary
		if err := dec.Decode(&t); err != nil {
			yield(models.TemplateSummary{}, errors.Transport(s.op, err))
			return
		}
		if t == nil {
			continue
		}
		if !yield(*t, nil) {
			return
		}
	}

	if _, err := dec.Token(); err != nil {
		yield(models.TemplateSummary{}, errors.Transport(s.op, err))
	}
}

func (s *TemplateStream) decodeObjects(dec *json.Decoder, yield func(models.TemplateSummary, error) bool) {
	for {
		var t *models.TemplateSummary
		err := dec.Decode(&t)
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(models.TemplateSummary{}, errors.Transport(s.op, err))
			return
		}
		if t == nil {
			continue
		}
		if !yield(*t, nil) {
			return
		}
	}
}

func peekNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = r.Discard(1)
		default:
			return b[0], nil
		}
	}
}

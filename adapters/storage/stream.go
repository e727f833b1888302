package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// ErrNoResponseChannel is returned when a stream save has nowhere to write.
var ErrNoResponseChannel = errors.New("stream storage: no response channel")

// Stream writes the artifact straight into the caller's response. It is
// bound to one request and cannot delete what it sent.
type Stream struct {
	out core.ResponseChannel
}

// NewStream binds the backend to out.
func NewStream(out core.ResponseChannel) *Stream { return &Stream{out: out} }

func (s *Stream) Kind() core.BackendKind { return core.BackendStream }

// Save writes data with d.ContentType. When the response is already
// committed it does nothing and reports StatusSkipped.
func (s *Stream) Save(ctx context.Context, d core.StorageDescriptor, data []byte) (core.SaveOutcome, error) {
	outcome := core.SaveOutcome{Kind: core.BackendStream, Dir: d.Dir, File: d.File}
	if s.out == nil {
		return outcome, &apperrors.BackendError{Backend: "stream", Dir: d.Dir, File: d.File, Op: "write", Err: ErrNoResponseChannel}
	}
	if s.out.Committed() {
		outcome.Status = core.StatusSkipped
		return outcome, nil
	}
	if err := ctx.Err(); err != nil {
		return outcome, &apperrors.BackendError{Backend: "stream", Dir: d.Dir, File: d.File, Op: "write", Err: err}
	}
	if err := s.out.Write(d.ContentType, data); err != nil {
		return outcome, &apperrors.BackendError{Backend: "stream", Dir: d.Dir, File: d.File, Op: "write", Err: err}
	}
	outcome.Status = core.StatusOK
	outcome.Bytes = len(data)
	return outcome, nil
}

// Delete always fails: streamed bytes cannot be recalled.
func (s *Stream) Delete(_ context.Context, d core.StorageDescriptor) error {
	return apperrors.New(apperrors.CategoryStorage, "stream.delete",
		fmt.Errorf("%w: stream artifacts cannot be deleted (%s)", apperrors.ErrUnsupportedBackend, d.File))
}

var _ core.Backend = (*Stream)(nil)

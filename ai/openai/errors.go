package openai

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/poiesic/askdb/core"
)

// classifyErr maps a client error to a structured core error at the
// call site. Transport-level failures become KindUnreachable so the
// caller can tell the user to start the local model service instead of
// showing a generic failure.
func classifyErr(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.Cancelled(op, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &core.Error{
			Kind: core.KindUnreachable,
			Op:   op,
			Msg:  "model service unreachable; is the local model server running?",
			Err:  err,
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &core.Error{
			Kind: core.KindUnreachable,
			Op:   op,
			Msg:  "model service unreachable; is the local model server running?",
			Err:  err,
		}
	}

	return core.WrapError(core.KindUnknown, op, err)
}

// malformed reports an upstream response missing expected fields.
func malformed(op, msg string) error {
	return core.Errorf(core.KindMalformedResponse, op, "%s", msg)
}

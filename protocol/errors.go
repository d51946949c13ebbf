package protocol

import (
	"github.com/cockroachdb/errors"
)

// ErrProtocolDecode marks every error caused by a malformed message or payload.
// Check with errors.Is; the wrapped error carries the offending field.
var ErrProtocolDecode = errors.New("protocol decode error")

func decodeErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrProtocolDecode)
}

func wrapDecodeError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrProtocolDecode)
}

// IsDecodeError reports whether err is a protocol decode error.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrProtocolDecode)
}

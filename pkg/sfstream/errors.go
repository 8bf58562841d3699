package sfstream

import "errors"

// ErrState is returned by Start without a prior successful Open.
var ErrState = errors.New("sfstream: invalid state transition")

// ErrArg covers invalid construction or Open arguments.
var ErrArg = errors.New("sfstream: invalid argument")

package component

import "errors"

// ErrInvalidOption is returned when an option value cannot be converted to the requested type.
var ErrInvalidOption = errors.New("component: invalid option")

package health

import "errors"

var errIndexMissing = errors.New("chunk index does not exist")

package archive

import "errors"

// ErrExtraction is returned for unsupported, corrupt or unsafe archives.
var ErrExtraction = errors.New("archive extraction failed")

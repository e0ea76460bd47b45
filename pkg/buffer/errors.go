package buffer

import "errors"

// ErrNoFrameAvailable is returned by NewPage/FetchPage when every
// frame is pinned and the replacer has nothing left to evict.
var ErrNoFrameAvailable = errors.New("buffer: no frame available, all frames pinned")

package coordinator

import "errors"

// ErrSessionNotFound is returned by BackendConnect/FrontendConnect when a
// session is absent both locally and in the mesh (or no mesh is
// configured).
var ErrSessionNotFound = errors.New("coordinator: session not found")

// ErrNameCollision is returned internally by Open when the bounded retry
// budget for generating a unique session name is exhausted.
var ErrNameCollision = errors.New("coordinator: could not allocate a unique session name")

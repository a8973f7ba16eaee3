// Package container holds the sentinel values shared by the persistent
// container sub-packages (forwardlist, list, deque): every mutating or
// positional operation on an empty or out-of-range container returns one
// of these.
package container

import "errors"

// ErrEmpty is returned by front/back/pop on an empty container.
var ErrEmpty = errors.New("container: operation on empty container")

// ErrOutOfRange is returned by a positional operation (erase, erase_after,
// emplace at an index) whose iterator or index does not address a live
// element of the container.
var ErrOutOfRange = errors.New("container: iterator out of range")

package scene

import "github.com/pkg/errors"

// ErrIllegalState is the class of every precondition failure raised by a
// scene component. Such errors are caller bugs and are never retried.
var ErrIllegalState = errors.New("illegal scene state")

var (
	ErrNoBody              = errors.Wrap(ErrIllegalState, "entity has no rigid body, give it a shape with SetShape first")
	ErrNoRegion            = errors.Wrap(ErrIllegalState, "entity is not simulated by any region")
	ErrNoEngine            = errors.Wrap(ErrIllegalState, "no physics engine configured")
	ErrMigrationInProgress = errors.Wrap(ErrIllegalState, "rigid body is already migrating between regions")
)

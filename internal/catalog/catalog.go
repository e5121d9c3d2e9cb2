package catalog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resolution is the answer to "does this exercise exist, and may this user see
// it". DisplayName is only meaningful when Accessible is true; it is the value
// sessions snapshot at assignment time.
type Resolution struct {
	Exists      bool
	Accessible  bool
	DisplayName string
}

// Resolver is the narrow interface the expansion engine consumes from the
// exercise catalog. Implementations may be backed by a local collection or by
// a remote catalog service.
type Resolver interface {
	ResolveExercise(ctx context.Context, ref string, visibleToUserID primitive.ObjectID) (Resolution, error)
}

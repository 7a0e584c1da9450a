package reviews

import "errors"

// ErrInvalidRecord indicates a Record is missing a required field.
var ErrInvalidRecord = errors.New("invalid review record")

// ErrInvalidClassification indicates a Classification violates its invariants.
var ErrInvalidClassification = errors.New("invalid classification")

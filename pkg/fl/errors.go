package fl

import "errors"

var (
	ErrNoUpdates      = errors.New("no updates provided for aggregation")
	ErrWeightMismatch = errors.New("aggregation weights do not match updates")
	ErrNotEncrypted   = errors.New("update is not homomorphically encrypted")
)

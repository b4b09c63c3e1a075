package pool

import "github.com/google/uuid"

// generateOrderName mints a default TransportOrder name when the caller
// did not supply one.
func generateOrderName() string {
	return "TO-" + uuid.New().String()
}

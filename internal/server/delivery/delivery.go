// Package delivery declares the outbound message contract for one-time
// codes. The auth core only produces plaintext codes and human-readable
// message bodies; the transport (email, SMS) lives behind Deliverer.
package delivery

import "context"

// Deliverer sends a message to a destination (an email address or a phone
// number).
type Deliverer interface {
	Deliver(ctx context.Context, destination string, message string) error
}

// Package model defines the domain types shared across the service:
// normalized symbols, the client command protocol, outbound price
// updates, and price text parsing.
package model

// Package oracle is the client side of the asynchronous randomness oracle.
//
// A request is registered with Request and handed to a Network, which
// answers later through Fulfill. Requests that are answered with too few
// numbers, or not answered before FulfillTimeout, are completed from a local
// SHA-256 generator. Those fallback numbers are weak: anyone who knows the
// request time and requester can predict them. Every such request carries
// Fallback=true and is logged at warn level.
package oracle

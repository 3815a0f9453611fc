// Package wire defines the intake request shared by the forwarder and the
// check processes it spawns.
//
// An intake request is a form-encoded POST to /intake/ with two fields:
//
//	payload  the raw JSON document (must decode to an object)
//	hash     hex-encoded MD5 digest of the payload bytes
//
// Sign computes the digest, Decode verifies it and parses the document, and
// Client posts payloads to a forwarder's intake over loopback.
package wire

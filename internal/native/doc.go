// Package native provides default implementations of the platform capabilities
// the deployer consumes: archive extraction, package content hashing and
// release signature decoding. Platforms with their own native bridge can
// supply different implementations through the deployer's interfaces.
package native

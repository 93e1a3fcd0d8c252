// Package api exposes the registry service over HTTP: publish registration,
// lookup, version listing, dependency traversal, health, and metrics.
package api

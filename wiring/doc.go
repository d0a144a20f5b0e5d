// Package wiring attaches named handlers to a mediator.Router.
//
// A Catalog records which handler handles which message type and how. The
// handler's shape is decided once, at registration, by probing the factory.
// Routers built by Catalog.Mediator resolve and subscribe every registered
// handler on their first Publish.
package wiring

// Package apistore is a client-side data-access layer for schema-described
// REST APIs. A Store fetches, caches and mutates typed resources:
//
//   - every fetched record is kept in an identity map so one (type, id) pair
//     maps to at most one live instance per store;
//   - concurrent identical fetches share a single in-flight request;
//   - raw JSON is hydrated ("typeified") into Resource, Schema, Collection and
//     APIError values, or into caller-registered models that embed *Resource;
//   - server-provided links, actions and pagination cursors are exposed on the
//     hydrated values and can be followed directly.
//
// The HTTP surface is reached through the Backend interface. HTTPBackend
// wraps the module's retrying HTTP client; the mock subpackage offers an
// in-memory replacement for tests and local development.
package apistore

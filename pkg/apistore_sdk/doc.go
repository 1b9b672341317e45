// Package apistore_sdk bootstraps an apistore.Store from configuration. The
// runtime mode comes from APISTORE_RUNTIME_MODE ("auto", "http" or "mock").
// In auto mode APISTORE_BASE_URL selects the HTTP backend; without it the
// store talks to an in-memory mock, optionally seeded from
// APISTORE_MOCK_SEED. APISTORE_CONFIG names a YAML file applied beneath the
// variables.
package apistore_sdk

// Package shared holds cross-cutting helpers that belong to no single
// layer. Today that is only testutil, an in-memory slog handler used by
// tests to assert on structured log output:
//
//	logger, logs := testutil.NewTestLogger(t)
//	// exercise code that logs through logger
//	assert.True(t, logs.HasMessage("pipeline started"))
//
// Keep domain logic out of here; anything bank- or indicator-specific
// lives under internal/indicators or the services layer.
package shared

// Package bridge turns the fire-and-forget transport into awaitable
// request/response calls against the execution service.
//
// Correlation:
// Every outbound request is stamped with a monotonically increasing ID from a
// Clock. The service echoes the ID on its response and the Correlator resolves
// the waiting caller by looking the ID up in its pending map. Responses may
// therefore arrive in any order. A service that answers strictly in request
// order, as internal/engine does, is handled identically.
//
// Failure:
// A channel-level error fails every pending request with a *ChannelError and
// leaves the Correlator broken: later calls fail immediately with the same
// error. There are no retries; callers launch a new execution context.
//
// There is no intrinsic timeout. A service that never answers leaves the
// caller waiting until its context is cancelled.
//
// Lifecycle:
// Conn is one execution context. Shared lazily launches exactly one Conn and
// hands the same pointer to every caller; it is constructed and passed around
// explicitly rather than stored in a package variable.
package bridge

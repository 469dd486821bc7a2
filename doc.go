// Package dyneval compiles Go source submitted at run time, caches the
// resulting instances under caller-chosen identities, and calls their
// methods.
//
// Source is interpreted by an embedded Go interpreter, so no toolchain is
// needed at run time. Each compilation gets its own interpreter.
//
// Typical use is as follows:
//
//  1. Write a script that defines the entry type, package scripts, type Entry,
//     embedding scriptapi.Base
//  2. Create a Host
//  3. Use GetOrCompile to compile the script and cache the instance under an identity
//  4. Use Execute to call methods on the cached instance
//
// Compile failures
//
// There are two kinds of failure. Problems with the submitted source, such as
// syntax errors, unresolved references or warnings escalated by
// WarningsAsErrors, are returned as Diagnostics with a nil error, because
// they are expected and a user needs to see them. Mistakes in how the host is
// driven are returned as errors wrapping one of the sentinel errors:
// ErrEntryNotFound, ErrCapability, ErrUnknownIdentity, ErrUnknownMethod and
// ErrBoundaryClosed.
//
// A compile that fails never changes the cache, so a broken edit of a script
// leaves the last good instance in place.
//
// References
//
// A script can ask for additional packages with directive lines:
//
//     //@:mathx
//
// Bare names are resolved by package refs against the search paths and made
// importable by that name. Names that cannot be found are reported as
// compile diagnostics.
//
// Boundaries
//
// Passing a Boundary to GetOrCompile loads the module into the boundary
// instead of the cache. The instance is only reachable through the returned
// value, and Boundary.Close releases every module in it.
//
// Concurrency
//
// A Host is safe for concurrent use. Concurrent GetOrCompile calls for the
// same identity compile once. Compilation itself runs on the caller's
// goroutine and is not interruptible; the context is checked before
// compiling and before instantiating.
package dyneval

// Package provisioning implements the admin user-provisioning workflow.
//
// A provisioning call runs in a fixed order:
//
//  1. Authorizer.Precheck, which never performs I/O
//  2. request validation (email and password required, role in the enum)
//  3. Authorizer.Authorize, which may resolve the caller and look up its role
//  4. identity creation
//  5. profile row write (upsert by default)
//
// A profile write failure after the identity exists is reported as
// profile_persist_failed. By default the workflow then deletes the identity
// once, best-effort, and reports whether that succeeded.
//
// The workflow holds no per-request state and may be shared across
// goroutines.
package provisioning

// Package audit records the provisioning audit trail.
//
// Every provisioning attempt produces one event: user.provisioned on success,
// user.provision_failed on failure, authz.denied when the caller was rejected.
// When a profile write fails after the identity was created, the cleanup
// outcome is recorded as user.compensated or user.orphaned.
//
//	logger := audit.NewLogrusLogger(auditLog)
//	logger.Log(ctx, &audit.Event{
//		Type:   audit.EventTypeUserProvisioned,
//		Status: audit.EventStatusSuccess,
//		UserID: "U1",
//	})
package audit

package provisioning

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/provisioner/pkg/audit"
	"github.com/platinummonkey/provisioner/pkg/contextkeys"
	"github.com/platinummonkey/provisioner/pkg/identity"
	"github.com/platinummonkey/provisioner/pkg/observability"
	"github.com/platinummonkey/provisioner/pkg/profiles"
	"github.com/platinummonkey/provisioner/pkg/supabase"
)

// Outcomes reported to the Recorder
const (
	OutcomeSuccess = "success"
)

// compensationTimeout bounds the cleanup delete, which runs even when the
// request context has been cancelled
const compensationTimeout = 10 * time.Second

// Recorder receives workflow metrics
type Recorder interface {
	ObserveProvisioning(outcome string)
	ObserveCompensation(succeeded bool)
}

// Options tune the workflow
type Options struct {
	// EmailConfirm marks created identities as having a confirmed email
	EmailConfirm bool
	// WriteMode selects insert or upsert for the profile row
	WriteMode profiles.WriteMode
	// CompensateOnProfileFailure deletes the new identity when its profile
	// row cannot be written
	CompensateOnProfileFailure bool
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		EmailConfirm:               true,
		WriteMode:                  profiles.WriteUpsert,
		CompensateOnProfileFailure: true,
	}
}

// Workflow provisions a user: identity first, then the profile row
type Workflow struct {
	identity   identity.Provider
	profiles   profiles.Store
	authorizer Authorizer
	audit      audit.Logger
	metrics    Recorder
	opts       Options
}

// Option configures a Workflow
type Option func(*Workflow)

// WithAuditLogger records every attempt in the audit trail
func WithAuditLogger(logger audit.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.audit = logger
		}
	}
}

// WithRecorder records outcome metrics
func WithRecorder(recorder Recorder) Option {
	return func(w *Workflow) {
		if recorder != nil {
			w.metrics = recorder
		}
	}
}

// WithOptions overrides DefaultOptions
func WithOptions(opts Options) Option {
	return func(w *Workflow) {
		w.opts = opts
	}
}

// NewWorkflow creates a workflow over its upstream dependencies
func NewWorkflow(provider identity.Provider, store profiles.Store, authorizer Authorizer, opts ...Option) *Workflow {
	w := &Workflow{
		identity:   provider,
		profiles:   store,
		authorizer: authorizer,
		audit:      audit.NewNoOpLogger(),
		metrics:    noopRecorder{},
		opts:       DefaultOptions(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Precheck rejects credentials that are missing or wrong without looking at
// a request body. Handlers call it when the body cannot be decoded so that
// an unauthorized caller never learns anything about body validation.
func (w *Workflow) Precheck(ctx context.Context, creds Credentials) error {
	if err := w.authorizer.Precheck(creds); err != nil {
		return w.deny(ctx, observability.FromContext(ctx), "", "", err)
	}
	return nil
}

// Provision authorizes the caller, validates req, creates the identity and
// writes its profile row. Every failure is an *Error.
func (w *Workflow) Provision(ctx context.Context, creds Credentials, req Request) (*Result, error) {
	log := observability.FromContext(ctx)

	if err := w.authorizer.Precheck(creds); err != nil {
		return nil, w.deny(ctx, log, "", req.Email, err)
	}

	input, err := validate(req)
	if err != nil {
		w.metrics.ObserveProvisioning(string(KindBadRequest))
		return nil, err
	}

	callerID, err := w.authorizer.Authorize(ctx, creds)
	if err != nil {
		return nil, w.deny(ctx, log, callerID, input.email, err)
	}
	ctx = contextkeys.WithCallerID(ctx, callerID)
	log = log.WithField("caller_id", callerID)

	user, err := w.identity.CreateUser(ctx, identity.CreateUserParams{
		Email:        input.email,
		Password:     input.password,
		Metadata:     map[string]interface{}{"full_name": input.fullName},
		EmailConfirm: w.opts.EmailConfirm,
	})
	if err != nil {
		provErr := NewError(KindUpstreamCreateFailed, err.Error(), err)
		if apiErr, ok := supabase.AsAPIError(err); ok {
			provErr.UpstreamRejected = apiErr.IsClientError()
		}
		log.WithError(err).WithField("email", input.email).Warn("identity creation failed")
		w.fail(ctx, callerID, "", input, provErr)
		return nil, provErr
	}
	log = log.WithField("user_id", user.ID)

	email := user.Email
	if email == "" {
		email = input.email
	}

	row := profiles.Row{
		ID:       user.ID,
		Role:     string(input.role),
		TeamID:   input.teamID,
		FullName: input.fullName,
		Username: DeriveUsername(input.email),
		Email:    input.email,
	}
	if err := profiles.Write(ctx, w.profiles, w.opts.WriteMode, row); err != nil {
		provErr := NewError(KindProfilePersistFailed, MessageProfilePersistFailed, err)
		log.WithError(err).Error("profile write failed after identity creation")
		w.compensate(ctx, log, callerID, user.ID, input, provErr)
		w.fail(ctx, callerID, user.ID, input, provErr)
		return nil, provErr
	}

	w.metrics.ObserveProvisioning(OutcomeSuccess)
	w.record(ctx, log, &audit.Event{
		Type:     audit.EventTypeUserProvisioned,
		Status:   audit.EventStatusSuccess,
		CallerID: callerID,
		UserID:   user.ID,
		Email:    input.email,
		Role:     string(input.role),
		Message:  "user provisioned",
	})
	log.WithField("role", input.role).Info("user provisioned")

	return &Result{UserID: user.ID, Email: email}, nil
}

// compensate removes the orphaned identity when configured to. It never
// retries.
func (w *Workflow) compensate(ctx context.Context, log *logrus.Entry, callerID, userID string, input validated, provErr *Error) {
	if !w.opts.CompensateOnProfileFailure {
		provErr.UserID = userID
		w.record(ctx, log, &audit.Event{
			Type:     audit.EventTypeUserOrphaned,
			Status:   audit.EventStatusFailure,
			CallerID: callerID,
			UserID:   userID,
			Email:    input.email,
			Message:  "identity left without profile",
		})
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := w.identity.DeleteUser(cleanupCtx, userID); err != nil {
		w.metrics.ObserveCompensation(false)
		provErr.UserID = userID
		log.WithError(err).Error("compensating identity delete failed; identity is orphaned")
		w.record(ctx, log, &audit.Event{
			Type:     audit.EventTypeUserOrphaned,
			Status:   audit.EventStatusFailure,
			CallerID: callerID,
			UserID:   userID,
			Email:    input.email,
			Message:  err.Error(),
		})
		return
	}

	w.metrics.ObserveCompensation(true)
	provErr.Compensated = true
	log.Info("identity deleted after profile failure")
	w.record(ctx, log, &audit.Event{
		Type:     audit.EventTypeUserCompensated,
		Status:   audit.EventStatusSuccess,
		CallerID: callerID,
		UserID:   userID,
		Email:    input.email,
		Message:  "identity deleted after profile failure",
	})
}

func (w *Workflow) deny(ctx context.Context, log *logrus.Entry, callerID, email string, err error) error {
	kind := KindOf(err)
	w.metrics.ObserveProvisioning(string(kind))

	status := audit.EventStatusDenied
	if kind == KindInternal {
		status = audit.EventStatusFailure
		log.WithError(err).Error("caller authorization failed")
	} else {
		log.WithField("kind", kind).Info("caller rejected")
	}
	w.record(ctx, log, &audit.Event{
		Type:     audit.EventTypeAuthzDenied,
		Status:   status,
		CallerID: callerID,
		Email:    email,
		Message:  err.Error(),
	})
	return err
}

func (w *Workflow) fail(ctx context.Context, callerID, userID string, input validated, provErr *Error) {
	w.metrics.ObserveProvisioning(string(provErr.Kind))
	w.record(ctx, observability.FromContext(ctx), &audit.Event{
		Type:     audit.EventTypeUserProvisionFailed,
		Status:   audit.EventStatusFailure,
		CallerID: callerID,
		UserID:   userID,
		Email:    input.email,
		Role:     string(input.role),
		Message:  provErr.Message,
	})
}

func (w *Workflow) record(ctx context.Context, log *logrus.Entry, event *audit.Event) {
	if err := w.audit.Log(ctx, event); err != nil {
		log.WithError(err).Warn("failed to write audit event")
	}
}

type noopRecorder struct{}

func (noopRecorder) ObserveProvisioning(string) {}
func (noopRecorder) ObserveCompensation(bool)   {}

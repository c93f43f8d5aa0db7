package submissions

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/provisioner/pkg/httputil"
	"github.com/platinummonkey/provisioner/pkg/observability"
)

// Recorder counts submissions by status
type Recorder interface {
	ObserveFormSubmission(status string)
}

// Handler serves POST /forms/submissions
type Handler struct {
	service  *Service
	recorder Recorder
}

// NewHandler creates a Handler. recorder may be nil.
func NewHandler(service *Service, recorder Recorder) *Handler {
	return &Handler{service: service, recorder: recorder}
}

type submitResponse struct {
	ID string `json:"id"`
}

// ServeHTTP accepts a JSON body or a form post
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteMethodNotAllowed(w, http.MethodPost)
		return
	}

	var sub Submission
	if httputil.IsFormPost(r) {
		if err := r.ParseForm(); err != nil {
			h.observe("invalid")
			httputil.WriteBadRequest(w, "invalid form body")
			return
		}
		sub.Name = r.PostForm.Get("name")
		sub.Email = r.PostForm.Get("email")
	} else if err := httputil.ParseJSON(r, &sub); err != nil {
		h.observe("invalid")
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	id, err := h.service.Submit(r.Context(), sub)
	switch {
	case errors.Is(err, ErrMissingField):
		h.observe("invalid")
		httputil.WriteBadRequest(w, err.Error())
		return
	case err != nil:
		h.observe("failed")
		observability.FromContext(r.Context()).WithError(err).Error("Failed to store form submission")
		httputil.WriteCodedError(w, http.StatusInternalServerError, "submission_failed", "could not save submission")
		return
	}

	h.observe("stored")
	httputil.WriteCreated(w, submitResponse{ID: id})
}

func (h *Handler) observe(status string) {
	if h.recorder != nil {
		h.recorder.ObserveFormSubmission(status)
	}
}

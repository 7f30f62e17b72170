package adminapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stacknerd/msghub/message"
	"github.com/stacknerd/msghub/store"
)

// ErrBadRequest wraps any request-body decode/validation failure.
var ErrBadRequest = errors.New("adminapi: bad request")

// ConstantsResponse is admin.constants.get's payload: every enumerated
// value the UI needs to render filter/edit widgets without hard-coding
// the factory's whitelists.
type ConstantsResponse struct {
	Levels      []message.Level          `json:"levels"`
	Kinds       []message.Kind           `json:"kinds"`
	States      []message.LifecycleState `json:"states"`
	ActionTypes []message.ActionType     `json:"actionTypes"`
}

func (r *Router) handleConstants(w http.ResponseWriter, req *http.Request) {
	r.writeJSON(w, http.StatusOK, ConstantsResponse{
		Levels: message.Levels,
		Kinds:  message.Kinds,
		States: []message.LifecycleState{
			message.StateOpen, message.StateAcked, message.StateSnoozed,
			message.StateClosed, message.StateDeleted, message.StateExpired,
		},
		ActionTypes: []message.ActionType{
			message.ActionAck, message.ActionSnooze, message.ActionClose,
			message.ActionDismiss, message.ActionCustom,
		},
	})
}

// queryRequest mirrors spec.md's admin.messages.query{query:{where,page,sort}}.
type queryRequest struct {
	Query store.Query `json:"query"`
}

func (r *Router) handleQuery(w http.ResponseWriter, req *http.Request) {
	var body queryRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	result, err := r.store.QueryMessages(body.Query)
	if err != nil {
		r.writeError(w, http.StatusBadRequest, err)
		return
	}
	r.writeJSON(w, http.StatusOK, result)
}

// deleteRequest mirrors spec.md's admin.messages.delete{refs:[...]}.
type deleteRequest struct {
	Refs []string `json:"refs"`
}

// deleteResponse reports which refs were actually removed, so the admin
// UI can distinguish "already gone" from "deleted just now".
type deleteResponse struct {
	Deleted []string `json:"deleted"`
}

func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) {
	var body deleteRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	deleted := []string{}
	for _, ref := range body.Refs {
		ok, err := r.store.RemoveMessage(req.Context(), ref, store.RemoveOptions{})
		if err != nil {
			r.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if ok {
			deleted = append(deleted, ref)
		}
	}
	r.writeJSON(w, http.StatusOK, deleteResponse{Deleted: deleted})
}

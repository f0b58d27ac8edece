// Package api exposes the deposit-opening saga over HTTP: an intake
// endpoint that starts the trip for a client, and read-only instance
// inspection.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meridianbank/depositflow"
	"github.com/meridianbank/depositflow/bank"
	"github.com/meridianbank/depositflow/deposit"
	"github.com/meridianbank/depositflow/process"
)

// Handler serves the banking endpoints.
type Handler struct {
	// Engine executes the saga.
	Engine *depositflow.Engine

	// Directory resolves the client attached to a new saga.
	Directory bank.Directory

	// DefaultClientID is the client used when a start request names
	// none.
	DefaultClientID string

	// Logger is the target for request-level messages. If it is nil,
	// logging.DefaultLogger is used.
	Logger logging.Logger
}

// Router returns the routes served by the handler.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/bank", func(r chi.Router) {
		r.Post("/start/{businessKey}", h.start)
		r.Get("/instances/{instanceID}", h.instance)
		r.Get("/tasks", h.tasks)
	})

	return r
}

// startRequest is the optional body of a start request.
type startRequest struct {
	ClientID string `json:"clientId"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	businessKey := strings.TrimSpace(chi.URLParam(r, "businessKey"))
	if businessKey == "" {
		http.Error(w, "business key must not be empty", http.StatusBadRequest)
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = h.DefaultClientID
	}

	client, ok, err := h.Directory.ClientByID(r.Context(), clientID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf("unknown client %q", clientID), http.StatusNotFound)
		return
	}

	vars := process.Variables{
		deposit.VarClient:        client,
		deposit.VarCorrelationID: uuid.NewString(),
	}

	inst, err := h.Engine.Start(r.Context(), deposit.MainProcessKey, businessKey, vars)
	if err != nil {
		switch {
		case errors.Is(err, depositflow.ErrDefinitionSuspended):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case errors.Is(err, depositflow.ErrUnhandledDomainError):
			// The saga started and immediately failed; the instance is
			// still reported so the caller can inspect it.
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	logging.Log(
		h.Logger,
		"intake: started instance %s for client %s %s (business key %q)",
		inst.ID(),
		client.Name,
		client.Surname,
		businessKey,
	)

	fmt.Fprintf(w, "Banking process with business key: %s - has started", businessKey)
}

func (h *Handler) instance(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.Engine.InstanceByID(chi.URLParam(r, "instanceID"))
	if !ok {
		http.Error(w, "instance not found", http.StatusNotFound)
		return
	}

	writeJSON(w, newInstanceView(inst))
}

func (h *Handler) tasks(w http.ResponseWriter, r *http.Request) {
	views := []taskView{}
	for _, t := range h.Engine.PendingTasks() {
		views = append(views, taskView{
			InstanceID:    t.Ref.InstanceID,
			NodeID:        t.Ref.NodeID,
			Name:          t.Name,
			DefinitionKey: t.DefinitionKey,
			BusinessKey:   t.BusinessKey,
		})
	}

	writeJSON(w, views)
}

// instanceView is the JSON shape of an instance.
type instanceView struct {
	InstanceID    string     `json:"instanceId"`
	DefinitionKey string     `json:"definitionKey"`
	BusinessKey   string     `json:"businessKey"`
	CorrelationID string     `json:"correlationId,omitempty"`
	Status        string     `json:"status"`
	WaitingAt     []string   `json:"waitingAt,omitempty"`
	Visited       []string   `json:"visited,omitempty"`
	Failure       *errorView `json:"failure,omitempty"`
}

type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type taskView struct {
	InstanceID    string `json:"instanceId"`
	NodeID        string `json:"nodeId"`
	Name          string `json:"name"`
	DefinitionKey string `json:"definitionKey"`
	BusinessKey   string `json:"businessKey"`
}

func newInstanceView(inst *depositflow.Instance) instanceView {
	v := instanceView{
		InstanceID:    inst.ID(),
		DefinitionKey: inst.DefinitionKey(),
		BusinessKey:   inst.BusinessKey(),
		CorrelationID: inst.CorrelationID(),
		Status:        inst.Status().String(),
		WaitingAt:     inst.WaitingAt(),
		Visited:       inst.Visited(),
	}

	if f := inst.Failure(); f != nil {
		v.Failure = &errorView{
			Code:    f.Code,
			Message: f.Message,
		}
	}

	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

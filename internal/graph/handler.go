package graph

import (
	"encoding/json"
	"errors"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"go.uber.org/zap"
)

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler serves POST /graphql.
type Handler struct {
	schema *graphql.Schema
	log    *zap.Logger
}

func NewHandler(schema *graphql.Schema, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{schema: schema, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeErrors(w, http.StatusMethodNotAllowed, "Only POST is supported")
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrors(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeErrors(w, http.StatusBadRequest, "Request body must be a JSON object with a query")
		return
	}
	if req.Query == "" {
		writeErrors(w, http.StatusBadRequest, "Missing query")
		return
	}

	resp := h.schema.Exec(r.Context(), req.Query, req.OperationName, req.Variables)

	body, err := json.Marshal(resp)
	if err != nil {
		h.log.Error("encode graphql response", zap.Error(err))
		writeErrors(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeErrors(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(graphql.Response{
		Errors: []*gqlerrors.QueryError{{Message: message}},
	})
}

package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/middleware"
	"github.com/ukydev/ev-warranty/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindInvalidInput:
		return http.StatusBadRequest
	case models.KindConcurrencyConflict, models.KindInvalidTransition,
		models.KindInvalidState, models.KindInvalidItemState:
		return http.StatusConflict
	case models.KindBusinessRuleViolation, models.KindNotCovered, models.KindPolicyNotActive,
		models.KindMissingInformation, models.KindIncompleteReview:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as {code, message}. Errors outside the domain
// taxonomy are logged and reported as INTERNAL without their text.
func writeError(w http.ResponseWriter, r *http.Request, logger log.FieldLogger, err error) {
	kind := models.KindOf(err)
	if kind == "" {
		logger.WithError(err).WithFields(log.Fields{
			"path":       r.URL.Path,
			"request_id": middleware.GetRequestID(r.Context()),
		}).Error("Unhandled error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "internal error"})
		return
	}
	writeJSON(w, statusFor(kind), ErrorResponse{Code: string(kind), Message: err.Error()})
}

func writeStatus(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return models.WrapError(models.KindInvalidInput, err, "failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return models.WrapError(models.KindInvalidInput, err, "invalid JSON")
	}
	return nil
}

// pathID parses the ObjectID path parameter name.
func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := r.PathValue(name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, models.WrapError(models.KindInvalidInput, err, "invalid %s %q", name, raw)
	}
	return id, nil
}

// queryID parses an optional ObjectID query parameter.
func queryID(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return primitive.NilObjectID, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, models.WrapError(models.KindInvalidInput, err, "invalid %s %q", name, raw)
	}
	return id, nil
}

// actorOf returns the authenticated caller, writing 401 when there is none.
func actorOf(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", "User context not found")
	}
	return actor, ok
}

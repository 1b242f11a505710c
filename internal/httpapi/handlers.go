// Package httpapi exposes the query service over JSON/HTTP.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/model"
	"github.com/GNS-Science/solvis-query/internal/query"
)

const maxBodyBytes = 1 << 20

// BackendParam selects the rupture set backend for one request.
const BackendParam = "backend"

// RupturesRequest is the body of a filter ruptures request.
type RupturesRequest struct {
	model.FilterCriteria
	SortBy []model.SortKey `json:"sortby,omitempty"`
	First  int             `json:"first,omitempty"`
	After  string          `json:"after,omitempty"`
}

// MFDResponse is the body of a magnitude-frequency response.
type MFDResponse struct {
	ModelID     string         `json:"model_id"`
	FaultSystem string         `json:"fault_system"`
	Bins        []model.MFDBin `json:"bins"`
}

// ListResponse wraps a list of names.
type ListResponse struct {
	Items []string `json:"items"`
}

// LocationsResponse lists the known locations.
type LocationsResponse struct {
	Locations []model.Location `json:"locations"`
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	services       map[string]*query.Service
	defaultBackend string
	errorHandler   *ErrorHandler
	logger         *zap.Logger
}

// NewHandlers creates handlers over one service per backend name.
// defaultBackend must be a key of services.
func NewHandlers(services map[string]*query.Service, defaultBackend string, errorHandler *ErrorHandler, logger *zap.Logger) (*Handlers, error) {
	if _, ok := services[defaultBackend]; !ok {
		return nil, fmt.Errorf("default backend %q has no service", defaultBackend)
	}
	return &Handlers{
		services:       services,
		defaultBackend: defaultBackend,
		errorHandler:   errorHandler,
		logger:         logger,
	}, nil
}

// FilterRuptures handles POST /v1/ruptures requests.
func (h *Handlers) FilterRuptures(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var req RupturesRequest
	if !h.decode(w, r, &req) {
		return
	}

	conn, err := svc.FilterRuptures(r.Context(), req.FilterCriteria, req.SortBy,
		query.PageRequest{First: req.First, After: req.After})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, conn)
}

// FilterRuptureSections handles POST /v1/rupture-sections requests.
func (h *Handlers) FilterRuptureSections(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var c model.FilterCriteria
	if !h.decode(w, r, &c) {
		return
	}

	res, err := svc.FilterRuptureSections(r.Context(), c)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

// MFD handles POST /v1/mfd requests.
func (h *Handlers) MFD(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var c model.FilterCriteria
	if !h.decode(w, r, &c) {
		return
	}

	bins, err := svc.MFD(r.Context(), c)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, MFDResponse{
		ModelID:     c.ModelID,
		FaultSystem: c.FaultSystem,
		Bins:        bins,
	})
}

// RuptureDetail handles GET /v1/models/{model_id}/fault-systems/{fault_system}/ruptures/{rupture_index}.
func (h *Handlers) RuptureDetail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["rupture_index"])
	if err != nil {
		h.errorHandler.WriteValidationError(w, r, "rupture_index must be an integer")
		return
	}

	res, err := h.services[h.defaultBackend].RuptureDetail(r.Context(), vars["model_id"], vars["fault_system"], index)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}

// ParentFaultNames handles GET /v1/models/{model_id}/fault-systems/{fault_system}/parent-faults.
func (h *Handlers) ParentFaultNames(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	names, err := h.services[h.defaultBackend].ParentFaultNames(r.Context(), vars["model_id"], vars["fault_system"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, ListResponse{Items: names})
}

// FaultSystems handles GET /v1/models/{model_id}/fault-systems.
func (h *Handlers) FaultSystems(w http.ResponseWriter, r *http.Request) {
	systems, err := h.services[h.defaultBackend].FaultSystems(r.Context(), mux.Vars(r)["model_id"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, ListResponse{Items: systems})
}

// Models handles GET /v1/models.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, ListResponse{Items: h.services[h.defaultBackend].ModelIDs()})
}

// Backends handles GET /v1/backends.
func (h *Handlers) Backends(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.services))
	for name := range h.services {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSONResponse(w, http.StatusOK, ListResponse{Items: names})
}

// Locations handles GET /v1/locations.
func (h *Handlers) Locations(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, LocationsResponse{Locations: h.services[h.defaultBackend].Locations()})
}

// LocationsGeoJSON handles GET /v1/locations/geojson?radius_km=..&location_id=..
func (h *Handlers) LocationsGeoJSON(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	radius, err := strconv.Atoi(q.Get("radius_km"))
	if err != nil {
		h.errorHandler.WriteValidationError(w, r, "radius_km must be an integer")
		return
	}

	fc, err := h.services[h.defaultBackend].LocationsGeoJSON(q["location_id"], radius)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "application/geo+json", fc)
}

// service picks the query service for the request's backend parameter.
func (h *Handlers) service(w http.ResponseWriter, r *http.Request) (*query.Service, bool) {
	name := r.URL.Query().Get(BackendParam)
	if name == "" {
		name = h.defaultBackend
	}
	svc, ok := h.services[name]
	if !ok {
		h.errorHandler.WriteValidationError(w, r, fmt.Sprintf("unknown backend %q", name))
		return nil, false
	}
	return svc, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		// field decoders such as SetOperation report typed errors
		var qe *errors.QueryError
		if stderrors.As(err, &qe) {
			h.errorHandler.HandleError(w, r, qe)
			return false
		}
		h.errorHandler.WriteValidationError(w, r, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, v interface{}) {
	writeJSON(w, statusCode, "application/json", v)
}

func writeJSON(w http.ResponseWriter, statusCode int, contentType string, v interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"borehole-geometry/internal/audit"
	"borehole-geometry/internal/auth"
	"borehole-geometry/internal/eventing"
	geometryapp "borehole-geometry/internal/geometry/application"
	geometry "borehole-geometry/internal/geometry/domain"
	"borehole-geometry/internal/geometry/interfaces/export"
)

const (
	formatsPath     = "/api/v1/geometry/formats"
	boreholesPrefix = "/api/v1/boreholes/"

	defaultMaxBodyBytes = 10 << 20
	multipartOverhead   = 1 << 20
)

// Handler serves geometry and depth conversion endpoints.
type Handler struct {
	service         *geometryapp.GeometryService
	boreholeChecker auth.BoreholeTenantChecker
	auditLogger     audit.Logger
	logger          *log.Logger
	maxBodyBytes    int64
	exportTitle     string
}

// Option configures the handler.
type Option func(*Handler)

// WithMaxBodyBytes limits the uploaded file size.
func WithMaxBodyBytes(limit int64) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// WithExportTitle sets the title printed on PDF exports.
func WithExportTitle(title string) Option {
	return func(h *Handler) {
		h.exportTitle = title
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(service *geometryapp.GeometryService, boreholeChecker auth.BoreholeTenantChecker, auditLogger audit.Logger, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("geometry handler: nil service")
	}
	h := &Handler{
		service:         service,
		boreholeChecker: boreholeChecker,
		auditLogger:     auditLogger,
		logger:          log.Default(),
		maxBodyBytes:    defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP routes geometry requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == formatsPath {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleFormats(w)
		return
	}
	if !strings.HasPrefix(r.URL.Path, boreholesPrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, boreholesPrefix)
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	boreholeID := parts[0]
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" {
		if err := ensureBoreholeTenant(r, h.boreholeChecker, tenantID, boreholeID); err != nil {
			respondTenantError(w, err)
			return
		}
	}
	ctx := eventing.WithTenantID(r.Context(), tenantID)
	if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
		ctx = eventing.WithCorrelationID(ctx, requestID)
	}
	r = r.WithContext(ctx)

	switch {
	case len(parts) == 2 && parts[1] == "geometry":
		switch r.Method {
		case http.MethodPost, http.MethodPut:
			h.handleUpload(w, r, boreholeID)
		case http.MethodDelete:
			h.handleDelete(w, r, boreholeID)
		case http.MethodGet:
			h.handleStations(w, r, boreholeID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	case len(parts) == 3 && parts[1] == "geometry" && strings.HasPrefix(parts[2], "export.") && r.Method == http.MethodGet:
		h.handleExport(w, r, boreholeID, strings.TrimPrefix(parts[2], "export."))
		return
	case len(parts) == 3 && parts[1] == "depth" && r.Method == http.MethodGet:
		h.handleDepth(w, r, boreholeID, parts[2])
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleFormats(w http.ResponseWriter) {
	formats := h.service.ListFormats()
	type column struct {
		Name     string `json:"name"`
		Position int    `json:"position"`
		Required bool   `json:"required"`
	}
	type formatResponse struct {
		Name    string   `json:"name"`
		Columns []column `json:"columns"`
	}
	resp := make([]formatResponse, 0, len(formats))
	for _, f := range formats {
		item := formatResponse{Name: string(f)}
		for _, c := range f.Columns() {
			item.Columns = append(item.Columns, column{Name: c.Name, Position: c.Position, Required: c.Required})
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, boreholeID string) {
	formatName := r.URL.Query().Get("format")
	filename, data, formValue, err := h.readUpload(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("file exceeds %d bytes", h.maxBodyBytes), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if formatName == "" {
		formatName = formValue
	}

	count, err := h.service.Upload(r.Context(), boreholeID, filename, data, formatName)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borehole_id": boreholeID, "count": count})
	h.logAudit(r, boreholeID, "geometry.upload", map[string]any{
		"format":   formatName,
		"filename": filename,
		"count":    count,
		"bytes":    len(data),
	})
}

// readUpload accepts either a multipart form with a "file" part or the raw file as body.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes+multipartOverhead)
		if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
			return "", nil, "", err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, "", errors.New("file is required")
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, h.maxBodyBytes+1))
		if err != nil {
			return "", nil, "", err
		}
		if int64(len(data)) > h.maxBodyBytes {
			return "", nil, "", &http.MaxBytesError{Limit: h.maxBodyBytes}
		}
		return header.Filename, data, r.FormValue("format"), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, "", err
	}
	return r.URL.Query().Get("filename"), data, "", nil
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, boreholeID string) {
	removed, err := h.service.Delete(r.Context(), boreholeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borehole_id": boreholeID, "removed": removed})
	h.logAudit(r, boreholeID, "geometry.delete", map[string]any{"removed": removed})
}

type stationResponse struct {
	MD   float64  `json:"md"`
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
	Z    float64  `json:"z"`
	HAZI *float64 `json:"hazi"`
	DEVI *float64 `json:"devi"`
}

func (h *Handler) handleStations(w http.ResponseWriter, r *http.Request, boreholeID string) {
	stations, err := h.service.Stations(r.Context(), boreholeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := make([]stationResponse, 0, len(stations))
	for _, s := range stations {
		resp = append(resp, stationResponse{MD: s.MD, X: s.X, Y: s.Y, Z: s.Z, HAZI: s.HAZI, DEVI: s.DEVI})
	}
	writeJSON(w, http.StatusOK, map[string]any{"borehole_id": boreholeID, "stations": resp})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, boreholeID, kind string) {
	stations, err := h.service.Stations(r.Context(), boreholeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	report := export.Report{Title: h.exportTitle, BoreholeID: boreholeID, Stations: stations}

	var (
		data        []byte
		contentType string
	)
	switch kind {
	case "xlsx":
		data, err = export.BuildStationsXLSX(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = export.BuildStationsPDF(report)
		contentType = "application/pdf"
	case "geojson":
		data, err = export.BuildStationsGeoJSON(report)
		contentType = "application/geo+json"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Printf("geometry export %s %s: %v", boreholeID, kind, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", boreholeID+"_geometry."+kind))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleDepth(w http.ResponseWriter, r *http.Request, boreholeID, kind string) {
	switch kind {
	case "tvd":
		md, err := parseFloatQuery(r, "md")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tvd, err := h.service.TVD(r.Context(), boreholeID, md)
		if err != nil {
			h.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"borehole_id": boreholeID, "md": md, "tvd": tvd})
	case "masl":
		md, err := parseFloatQuery(r, "md")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		masl, err := h.service.MASL(r.Context(), boreholeID, md)
		if err != nil {
			h.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"borehole_id": boreholeID, "md": md, "masl": masl})
	case "md":
		masl, err := parseFloatQuery(r, "masl")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		md, err := h.service.MDFromMASL(r.Context(), boreholeID, masl)
		if err != nil {
			h.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"borehole_id": boreholeID, "masl": masl, "md": md})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type validationResponse struct {
	Header []string            `json:"header,omitempty"`
	Rows   map[string][]string `json:"rows,omitempty"`
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var verr *geometry.ValidationError
	switch {
	case errors.As(err, &verr):
		body := validationResponse{Header: verr.Header}
		if len(verr.Rows) > 0 {
			body.Rows = make(map[string][]string, len(verr.Rows))
			for row, msgs := range verr.Rows {
				body.Rows[strconv.Itoa(row)] = msgs
			}
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": body})
	case errors.Is(err, geometry.ErrInvalidFormat):
		http.Error(w, "invalid geometry format", http.StatusBadRequest)
	case errors.Is(err, geometry.ErrInvalidDepth), errors.Is(err, geometry.ErrEmptyBoreholeID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, geometry.ErrMutationDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, geometry.ErrBoreholeNotFound), errors.Is(err, auth.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		h.logger.Printf("geometry handler: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) logAudit(r *http.Request, boreholeID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	entry := audit.WithRequest(audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "borehole_geometry",
		ResourceID:   boreholeID,
		BoreholeID:   boreholeID,
	}, r, meta)
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit %s %s: %v", action, boreholeID, err)
	}
}

func ensureBoreholeTenant(r *http.Request, checker auth.BoreholeTenantChecker, tenantID, boreholeID string) error {
	if checker == nil || tenantID == "" || boreholeID == "" {
		return nil
	}
	return checker.EnsureBoreholeTenant(r.Context(), tenantID, boreholeID)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

func parseFloatQuery(r *http.Request, key string) (float64, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return 0, errors.New(key + " is required")
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.New(key + " must be a number")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

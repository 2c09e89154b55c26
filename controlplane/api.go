package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/modelplane-labs/modelplane-go/internal/compat"
	"github.com/modelplane-labs/modelplane-go/internal/pipeline/argo"
	"github.com/modelplane-labs/modelplane-go/internal/pipeline/parser"
	"github.com/modelplane-labs/modelplane-go/internal/platform/auditlog"
	"github.com/modelplane-labs/modelplane-go/internal/platform/auth"
	"github.com/modelplane-labs/modelplane-go/internal/platform/objectstore"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
	deploysvc "github.com/modelplane-labs/modelplane-go/internal/service/deployments"
	pipelinesvc "github.com/modelplane-labs/modelplane-go/internal/service/pipelines"
	trainjobsvc "github.com/modelplane-labs/modelplane-go/internal/service/trainjobs"
)

type controlPlaneAPI struct {
	logger      *slog.Logger
	db          *sql.DB
	pipelines   *pipelinesvc.Service
	trainJobs   *trainjobsvc.Service
	deployments *deploysvc.Service
	models      repo.ModelRepository
	datasets    repo.DatasetRepository
	store       objectstore.Store
	storeCfg    objectstore.Config
	presignTTL  time.Duration
}

func newControlPlaneAPI(
	logger *slog.Logger,
	db *sql.DB,
	pipelines *pipelinesvc.Service,
	trainJobs *trainjobsvc.Service,
	deployments *deploysvc.Service,
	models repo.ModelRepository,
	datasets repo.DatasetRepository,
	store objectstore.Store,
	storeCfg objectstore.Config,
	presignTTL time.Duration,
) *controlPlaneAPI {
	if presignTTL <= 0 {
		presignTTL = 10 * time.Minute
	}
	return &controlPlaneAPI{
		logger:      logger,
		db:          db,
		pipelines:   pipelines,
		trainJobs:   trainJobs,
		deployments: deployments,
		models:      models,
		datasets:    datasets,
		store:       store,
		storeCfg:    storeCfg,
		presignTTL:  presignTTL,
	}
}

func (api *controlPlaneAPI) register(mux *http.ServeMux) {
	api.registerPipelines(mux)
	api.registerTrainJobs(mux)
	api.registerDeployments(mux)
	api.registerCatalog(mux)
}

func (api *controlPlaneAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *controlPlaneAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *controlPlaneAPI) writeErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code string, details any) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
		"details":    details,
	})
}

// writeDomainError maps domain and adapter failures onto the API's error
// taxonomy. Compiler invariant violations surface as 500s; everything the
// caller can fix is a 4xx.
func (api *controlPlaneAPI) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var parseErr *parser.ParseError
	if errors.As(err, &parseErr) {
		api.writeErrorWithDetails(w, r, http.StatusBadRequest, "invalid_pipeline", map[string]any{
			"field":  parseErr.Field,
			"reason": parseErr.Reason,
		})
		return
	}
	var ruleErr *compat.RuleError
	if errors.As(err, &ruleErr) {
		api.writeErrorWithDetails(w, r, http.StatusUnprocessableEntity, "spec_incompatible", map[string]any{
			"rule":    ruleErr.Rule,
			"field":   ruleErr.Field,
			"message": ruleErr.Message,
		})
		return
	}
	var internalErr *argo.InternalError
	if errors.As(err, &internalErr) {
		api.logger.Error("workflow compiler invariant violated", "error", err.Error(), "request_id", r.Header.Get("X-Request-Id"))
		api.writeError(w, r, http.StatusInternalServerError, "internal_invariant")
		return
	}
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "not_found")
		return
	}
	if isUniqueViolation(err) {
		api.writeError(w, r, http.StatusConflict, "already_exists")
		return
	}
	api.logger.Error("request failed", "error", err.Error(), "request_id", r.Header.Get("X-Request-Id"))
	api.writeError(w, r, http.StatusInternalServerError, "internal_error")
}

func (api *controlPlaneAPI) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return auth.Identity{}, false
	}
	return identity, true
}

func (api *controlPlaneAPI) projectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return "", false
	}
	return projectID, true
}

// audit records a mutating operation. Failures are logged, never surfaced.
func (api *controlPlaneAPI) audit(r *http.Request, identity auth.Identity, action, resourceType, resourceID string, payload map[string]any) {
	if api.db == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["service"] = "controlplane"
	ctx, cancel := context.WithTimeout(r.Context(), 750*time.Millisecond)
	defer cancel()
	_, err := auditlog.Insert(ctx, api.db, auditlog.Event{
		OccurredAt:   time.Now().UTC(),
		Actor:        identity.Subject,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    r.Header.Get("X-Request-Id"),
		IP:           requestIP(r.RemoteAddr),
		UserAgent:    r.UserAgent(),
		Payload:      payload,
	})
	if err != nil {
		api.logger.Warn("audit insert failed", "action", action, "resource_id", resourceID, "error", err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Command controlplane is the LLM-Ops control plane: it validates pipeline
// DAGs, compiles them into Argo Workflow manifests, gates training and
// serving submissions through the compatibility rules and mirrors external
// orchestrator state locally.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelplane-labs/modelplane-go/internal/adapters/kserve"
	"github.com/modelplane-labs/modelplane-go/internal/adapters/mlflow"
	"github.com/modelplane-labs/modelplane-go/internal/adapters/orchestrator"
	"github.com/modelplane-labs/modelplane-go/internal/pipeline/argo"
	"github.com/modelplane-labs/modelplane-go/internal/platform/auditlog"
	"github.com/modelplane-labs/modelplane-go/internal/platform/auth"
	"github.com/modelplane-labs/modelplane-go/internal/platform/env"
	"github.com/modelplane-labs/modelplane-go/internal/platform/httpserver"
	"github.com/modelplane-labs/modelplane-go/internal/platform/k8s"
	"github.com/modelplane-labs/modelplane-go/internal/platform/metrics"
	"github.com/modelplane-labs/modelplane-go/internal/platform/objectstore"
	"github.com/modelplane-labs/modelplane-go/internal/platform/postgres"
	repopg "github.com/modelplane-labs/modelplane-go/internal/repo/postgres"
	deploysvc "github.com/modelplane-labs/modelplane-go/internal/service/deployments"
	pipelinesvc "github.com/modelplane-labs/modelplane-go/internal/service/pipelines"
	trainjobsvc "github.com/modelplane-labs/modelplane-go/internal/service/trainjobs"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("CONTROLPLANE_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("CONTROLPLANE_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	namespace := env.String("CONTROLPLANE_WORKFLOW_NAMESPACE", "ml-pipelines")
	servingNamespace := env.String("CONTROLPLANE_SERVING_NAMESPACE", "ml-serving")
	servingRuntime := env.String("CONTROLPLANE_SERVING_RUNTIME", "")
	presignTTL, err := env.Duration("CONTROLPLANE_PRESIGN_TTL", 10*time.Minute)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	storeClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store client init failed", "error", err)
		os.Exit(2)
	}
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := objectstore.EnsureBuckets(startupCtx, storeClient, storeCfg); err != nil {
		cancel()
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}
	cancel()
	store, err := objectstore.NewMinioStoreWithClient(storeClient)
	if err != nil {
		logger.Error("object store init failed", "error", err)
		os.Exit(2)
	}

	m := metrics.New()

	k8sClient, err := newKubernetesClient(namespace)
	if err != nil {
		logger.Error("kubernetes client init failed", "error", err)
		os.Exit(2)
	}
	orch, err := orchestrator.NewArgoOrchestrator(k8sClient, namespace)
	if err != nil {
		logger.Error("argo orchestrator init failed", "error", err)
		os.Exit(2)
	}
	deployer, err := kserve.NewDeployer(k8sClient, servingNamespace, servingRuntime)
	if err != nil {
		logger.Error("kserve deployer init failed", "error", err)
		os.Exit(2)
	}

	// Tracking is optional; without MODELPLANE_MLFLOW_URL submissions are
	// accepted untracked.
	var tracker trainjobsvc.Tracker
	if env.String("MODELPLANE_MLFLOW_URL", "") != "" {
		mlflowCfg, err := mlflow.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid mlflow config", "error", err)
			os.Exit(2)
		}
		mlflowClient, err := mlflow.NewClient(mlflowCfg)
		if err != nil {
			logger.Error("mlflow client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if _, err := mlflowClient.EnsureExperiment(startupCtx); err != nil {
			logger.Warn("mlflow experiment check failed", "error", err.Error())
		}
		cancel()
		tracker = mlflowClient
	}

	pipelineStore := repopg.NewPipelineStore(db)
	trainJobStore := repopg.NewTrainJobStore(db)
	deploymentStore := repopg.NewDeploymentStore(db)
	modelStore := repopg.NewModelStore(db)
	datasetStore := repopg.NewDatasetStore(db)

	pipelines := pipelinesvc.New(logger, pipelineStore, orch, argo.NewBuilder(), m, namespace)
	trainJobs := trainjobsvc.New(logger, trainJobStore, modelStore, datasetStore, tracker, m)
	deployments := deploysvc.New(logger, deploymentStore, trainJobStore, modelStore, deployer, m, storeCfg.BucketModels)
	if pipelines == nil || trainJobs == nil || deployments == nil {
		logger.Error("service init failed")
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("controlplane"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"controlplane",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return objectstore.CheckBuckets(checkCtx, storeClient, storeCfg)
				},
			},
		),
	)
	mux.Handle("GET /metrics", m.Handler())

	api := newControlPlaneAPI(logger, db, pipelines, trainJobs, deployments, modelStore, datasetStore, store, storeCfg, presignTTL)
	api.register(mux)

	skipPrefixes := []string{"/healthz", "/readyz", "/metrics", "/auth/"}
	authenticator, err := newAuthenticator(ctx, logger, mux)
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}

	handler := auth.Middleware{
		Logger:         logger,
		Authenticator:  authenticator,
		Authorize:      auth.MethodRoleAuthorizer(),
		ProjectResolve: auth.RequireProjectIDResolver(skipPrefixes),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, "controlplane", event)
		},
		SkipPrefixes: skipPrefixes,
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "controlplane",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "controlplane", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// newKubernetesClient prefers in-cluster credentials; KUBERNETES_API_URL
// plus KUBERNETES_API_TOKEN switch to an explicit API server for
// off-cluster development.
func newKubernetesClient(namespace string) (*k8s.Client, error) {
	if baseURL := env.String("KUBERNETES_API_URL", ""); baseURL != "" {
		return k8s.NewClientWithToken(baseURL, env.String("KUBERNETES_API_TOKEN", ""), namespace, nil)
	}
	return k8s.NewInClusterClient()
}

// newAuthenticator wires the authenticator for the configured mode. With a
// gateway in front, MODELPLANE_INTERNAL_AUTH_SECRET switches to signed
// internal headers regardless of AUTH_MODE. OIDC mode also mounts the
// login, callback, logout and session routes.
func newAuthenticator(ctx context.Context, logger *slog.Logger, mux *http.ServeMux) (auth.Authenticator, error) {
	if secret := env.String("MODELPLANE_INTERNAL_AUTH_SECRET", ""); secret != "" {
		return auth.NewInternalHeadersAuthenticator(secret)
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	switch authCfg.Mode {
	case auth.ModeOIDC:
		oidcSvc, err := auth.NewOIDCService(ctx, authCfg)
		if err != nil {
			return nil, err
		}
		login, err := oidcSvc.LoginHandler()
		if err != nil {
			return nil, err
		}
		callback, err := oidcSvc.CallbackHandler()
		if err != nil {
			return nil, err
		}
		mux.HandleFunc("GET /auth/login", login)
		mux.HandleFunc("GET /auth/callback", callback)
		mux.HandleFunc("POST /auth/logout", oidcSvc.LogoutHandler())
		mux.HandleFunc("GET /auth/session", oidcSvc.SessionHandler())
		return oidcSvc, nil
	case auth.ModeDev:
		return auth.NewDevAuthenticator(authCfg), nil
	case auth.ModeDisabled:
		logger.Warn("authentication disabled, requests run as an anonymous admin")
		authCfg.DevSubject = "anonymous"
		authCfg.DevEmail = ""
		authCfg.DevRoles = []string{"admin"}
		return auth.NewDevAuthenticator(authCfg), nil
	default:
		return nil, errors.New("unsupported auth mode")
	}
}

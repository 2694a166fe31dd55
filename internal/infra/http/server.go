package http

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hspiira/timeline-sub001/internal/config"
	"github.com/hspiira/timeline-sub001/internal/domain"
	"github.com/hspiira/timeline-sub001/internal/infra/cachemem"
	"github.com/hspiira/timeline-sub001/internal/infra/cacheredis"
	"github.com/hspiira/timeline-sub001/internal/infra/crypto"
	"github.com/hspiira/timeline-sub001/internal/infra/db"
	"github.com/hspiira/timeline-sub001/internal/infra/jobmem"
	"github.com/hspiira/timeline-sub001/internal/infra/notify"
	"github.com/hspiira/timeline-sub001/internal/infra/policyopa"
	"github.com/hspiira/timeline-sub001/internal/infra/schemaval"
	"github.com/hspiira/timeline-sub001/internal/usecase"
)

// AccessPolicy is the request-level permission gate. A nil policy allows
// everything; a non-nil policy fails closed on evaluation errors.
type AccessPolicy interface {
	Evaluate(ctx context.Context, input domain.AccessInput) (domain.AccessDecision, error)
}

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine
	log   *slog.Logger

	ledger     *usecase.EventLedger
	state      *usecase.StateService
	snapshots  *usecase.SnapshotService
	verifier   *usecase.ChainVerifier
	verifyJobs *usecase.VerificationJobRunner
	admin      *usecase.AdminService

	events     usecase.EventRepository
	subjects   usecase.SubjectRepository
	tenants    TenantStore
	executions usecase.WorkflowExecutionRepository

	policy        AccessPolicy
	policyInitErr error

	// jobCtx scopes background verification goroutines to the server
	// lifetime instead of the request that started them.
	jobCtx context.Context
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r, jobCtx: context.Background()}
	s.initLogger()
	s.initDeps()
	s.initPolicy(nil)
	s.routes()
	return s
}

type ServerDeps struct {
	Ledger     *usecase.EventLedger
	State      *usecase.StateService
	Snapshots  *usecase.SnapshotService
	Verifier   *usecase.ChainVerifier
	VerifyJobs *usecase.VerificationJobRunner
	Admin      *usecase.AdminService
	Events     usecase.EventRepository
	Subjects   usecase.SubjectRepository
	Tenants    TenantStore
	Executions usecase.WorkflowExecutionRepository
	Policy     AccessPolicy
	Log        *slog.Logger
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:        cfg,
		r:          r,
		log:        deps.Log,
		ledger:     deps.Ledger,
		state:      deps.State,
		snapshots:  deps.Snapshots,
		verifier:   deps.Verifier,
		verifyJobs: deps.VerifyJobs,
		admin:      deps.Admin,
		events:     deps.Events,
		subjects:   deps.Subjects,
		tenants:    deps.Tenants,
		executions: deps.Executions,
		jobCtx:     context.Background(),
	}
	if s.log == nil {
		s.initLogger()
	}
	s.initPolicy(deps.Policy)
	s.routes()
	return s
}

func (s *Server) initLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(s.cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	s.log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func (s *Server) initDeps() {
	alg, err := crypto.AlgorithmByName(s.cfg.HashAlg)
	if err != nil {
		s.log.Warn("unknown hash algorithm, using sha256", "alg", s.cfg.HashAlg)
		alg = crypto.SHA256()
	}
	hasher := crypto.NewEventHasher(alg)

	if s.store == nil || s.store.DB == nil {
		s.log.Warn("no database configured, API surface disabled")
		return
	}
	gdb := s.store.DB

	tenantRepo := db.NewTenantRepository(gdb)
	subjectRepo := db.NewSubjectRepository(gdb)
	eventRepo := db.NewEventRepository(gdb, hasher)
	schemaRepo := db.NewSchemaRepository(gdb)
	ruleRepo := db.NewTransitionRuleRepository(gdb)
	workflowRepo := db.NewWorkflowRepository(gdb)
	executionRepo := db.NewWorkflowExecutionRepository(gdb)
	taskRepo := db.NewTaskRepository(gdb)
	snapshotRepo := db.NewSnapshotRepository(gdb)

	var schemaCache usecase.SchemaCache
	if s.cfg.RedisAddr != "" {
		if redisCache, err := cacheredis.New(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB); err == nil {
			schemaCache = redisCache
		} else {
			s.log.Warn("redis cache unavailable, using in-process cache", "err", err)
		}
	}
	if schemaCache == nil {
		schemaCache = cachemem.New()
	}

	payloads := schemaval.NewValidator()
	schemaValidator := usecase.NewSchemaValidator(schemaRepo, payloads, schemaCache, s.cfg.SchemaCacheTTL(), s.log)
	transition := usecase.NewTransitionValidator(ruleRepo, eventRepo)

	s.ledger = usecase.NewEventLedger(eventRepo, subjectRepo, schemaValidator, transition, nil, s.log)
	engine := usecase.NewWorkflowEngine(workflowRepo, executionRepo, taskRepo, s.ledger, notify.NewLogNotifier(s.log), nil, nil, s.log)
	engine.DefaultDailyCap = s.cfg.WorkflowDailyCapDefault
	s.ledger.SetWorkflowTrigger(engine)

	s.state = usecase.NewStateService(eventRepo, subjectRepo, snapshotRepo, nil, s.log)
	s.snapshots = usecase.NewSnapshotService(eventRepo, subjectRepo, snapshotRepo, s.state, nil, s.log)
	s.snapshots.JobDefaultLimit = s.cfg.SnapshotJobLimit
	s.snapshots.JobMaxLimit = s.cfg.SnapshotJobMaxLimit
	s.verifier = usecase.NewChainVerifier(eventRepo, subjectRepo, hasher, nil, s.log, s.cfg.VerifyMaxEvents, s.cfg.VerifyTimeout())
	s.verifyJobs = usecase.NewVerificationJobRunner(s.verifier, jobmem.New(), s.log)
	s.admin = usecase.NewAdminService(tenantRepo, subjectRepo, schemaRepo, ruleRepo, workflowRepo, payloads, schemaValidator, s.log)

	s.events = eventRepo
	s.subjects = subjectRepo
	s.tenants = tenantRepo
	s.executions = executionRepo
}

func (s *Server) initPolicy(override AccessPolicy) {
	if override != nil {
		s.policy = override
		return
	}
	if s.cfg.PolicyBundlePath == "" {
		return
	}
	engine, err := policyopa.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath, s.cfg.PolicyBundleID)
	if err != nil {
		s.policyInitErr = err
		return
	}
	s.policy = engine
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/tenants", s.handleCreateTenant)

		v1.POST("/tenants/:tenant_id/subjects", s.handleCreateSubject)
		v1.GET("/tenants/:tenant_id/subjects", s.handleListSubjects)

		v1.POST("/tenants/:tenant_id/events", s.handleAppendEvent)
		v1.POST("/tenants/:tenant_id/events/bulk", s.handleAppendEvents)
		v1.GET("/tenants/:tenant_id/events", s.handleListEvents)
		v1.GET("/tenants/:tenant_id/events/:event_id", s.handleGetEvent)
		v1.GET("/tenants/:tenant_id/subjects/:subject_id/events", s.handleListSubjectEvents)

		v1.GET("/tenants/:tenant_id/subjects/:subject_id/state", s.handleGetState)
		v1.POST("/tenants/:tenant_id/subjects/:subject_id/snapshot", s.handleCreateSnapshot)
		v1.POST("/tenants/:tenant_id/snapshots/run", s.handleRunSnapshotJob)

		v1.GET("/tenants/:tenant_id/subjects/:subject_id/verify", s.handleVerifySubject)
		v1.POST("/tenants/:tenant_id/verify-jobs", s.handleStartVerifyJob)
		v1.GET("/tenants/:tenant_id/verify-jobs/:job_id", s.handleGetVerifyJob)

		v1.POST("/tenants/:tenant_id/schemas", s.handleRegisterSchema)
		v1.GET("/tenants/:tenant_id/schemas/:event_type", s.handleListSchemas)
		v1.POST("/tenants/:tenant_id/schemas/:event_type/versions/:version/activate", s.handleActivateSchema)

		v1.POST("/tenants/:tenant_id/transition-rules", s.handleCreateRule)
		v1.PUT("/tenants/:tenant_id/transition-rules/:event_type", s.handleUpdateRule)
		v1.GET("/tenants/:tenant_id/transition-rules", s.handleListRules)

		v1.POST("/tenants/:tenant_id/workflows", s.handleCreateWorkflow)
		v1.PUT("/tenants/:tenant_id/workflows/:workflow_id", s.handleUpdateWorkflow)
		v1.GET("/tenants/:tenant_id/workflows", s.handleListWorkflows)
		v1.GET("/tenants/:tenant_id/workflows/:workflow_id", s.handleGetWorkflow)
		v1.GET("/tenants/:tenant_id/workflows/:workflow_id/executions", s.handleListExecutions)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown route")
	})
}

func (s *Server) Run() error {
	if s.policyInitErr != nil {
		return s.policyInitErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}

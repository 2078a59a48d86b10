package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dekarrin/gramforge/internal/codegen"
	"github.com/dekarrin/gramforge/internal/gferrors"
	"github.com/dekarrin/gramforge/internal/gflog"
	"github.com/dekarrin/gramforge/internal/grammar"
	"github.com/dekarrin/gramforge/internal/loader"
	"github.com/dekarrin/gramforge/server/dao"
	"github.com/dekarrin/gramforge/server/middle"
	"github.com/dekarrin/gramforge/server/result"
	"github.com/dekarrin/rezi"
)

// Server is a running gramforge build service. It accepts grammar build
// jobs over HTTP, runs them through the normalize/lower/codegen pipeline in
// the background, and serves the resulting artifacts.
type Server struct {
	router chi.Router

	db         dao.Store
	cfg        Config
	sema       chan struct{}
	apiKeyHash []byte
	secret     []byte
}

// New builds a Server from cfg, connecting to the configured database. cfg
// should already have had FillDefaults called on it and been validated.
func New(cfg Config) (*Server, error) {
	db, err := cfg.DB.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect to DB: %w", err)
	}

	apiKeyHash, err := bcrypt.GenerateFromPassword([]byte(cfg.APIKey), 14)
	if err != nil {
		return nil, fmt.Errorf("hash configured API key: %w", err)
	}

	srv := &Server{
		db:         db,
		cfg:        cfg,
		sema:       make(chan struct{}, cfg.MaxConcurrentBuilds),
		apiKeyHash: apiKeyHash,
		secret:     cfg.TokenSecret,
	}

	srv.router = srv.routes()

	return srv, nil
}

// ServeForever starts listening on addr (host:port, or :port) and blocks
// until the HTTP server returns an error.
func (s *Server) ServeForever(addr string) error {
	gflog.Info("listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Close releases the Server's database connection.
func (s *Server) Close() error {
	return s.db.Close()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware(middle.DontPanic()))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		result.NotFound("no route for %s", req.URL.Path).WriteResponse(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		result.MethodNotAllowed(req, "%s not allowed on %s", req.Method, req.URL.Path).WriteResponse(w)
	})

	r.Post("/api/v1/auth/token", s.handleAuthToken)

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware(middle.RequireBearer(s.validateBearer, s.cfg.UnauthDelay())))

		r.Post("/api/v1/jobs", s.handleCreateJob)
		r.Get("/api/v1/jobs", s.handleListJobs)
		r.Get("/api/v1/jobs/{id}", s.handleGetJob)
		r.Get("/api/v1/jobs/{id}/source", s.handleGetJobSource)
		r.Get("/api/v1/jobs/{id}/header", s.handleGetJobHeader)
		r.Get("/api/v1/jobs/{id}/grammar", s.handleGetJobGrammar)
		r.Delete("/api/v1/jobs/{id}", s.handleDeleteJob)
	})

	return r
}

func chiMiddleware(mw middle.Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next)
	}
}

func (s *Server) validateBearer(tok string) error {
	return validateToken(tok, s.secret)
}

// submitJob records a new pending BuildJob and, once a worker slot is free,
// runs it through normalization, lowering, and C codegen in the background.
func (s *Server) submitJob(ctx context.Context, format, entry string, raw bool, seed uint64, grammarSource []byte) (dao.BuildJob, error) {
	job, err := s.db.Jobs().Create(ctx, dao.BuildJob{
		Status:        dao.Pending,
		Format:        format,
		Entry:         entry,
		Raw:           raw,
		Seed:          seed,
		GrammarSource: grammarSource,
	})
	if err != nil {
		return dao.BuildJob{}, err
	}

	go s.runJob(job.ID)

	return job, nil
}

func (s *Server) runJob(id uuid.UUID) {
	s.sema <- struct{}{}
	defer func() { <-s.sema }()

	ctx := context.Background()

	job, err := s.db.Jobs().GetByID(ctx, id)
	if err != nil {
		gflog.Error("job %s: could not reload for processing: %s", id, err.Error())
		return
	}

	job.Status = dao.Running
	if job, err = s.db.Jobs().Update(ctx, id, job); err != nil {
		gflog.Error("job %s: could not mark running: %s", id, err.Error())
		return
	}

	artifacts, err := buildArtifacts(job)
	if err != nil {
		job.Status = dao.Failed
		job.FailureReason = err.Error()
		if _, uerr := s.db.Jobs().Update(ctx, id, job); uerr != nil {
			gflog.Error("job %s: could not record failure: %s", id, uerr.Error())
		}
		return
	}

	job.Status = dao.Done
	job.Grammar = artifacts.grammar
	job.Lowered = artifacts.lowered
	job.Source = artifacts.source
	job.Header = artifacts.header
	if _, err := s.db.Jobs().Update(ctx, id, job); err != nil {
		gflog.Error("job %s: could not record success: %s", id, err.Error())
	}
}

// buildJobArtifacts holds everything a completed build job produces, kept
// together so runJob has one value to stash onto the job record instead
// of a handful of parallel return values.
type buildJobArtifacts struct {
	grammar []byte
	lowered []byte
	source  []byte
	header  []byte
}

// buildArtifacts runs the normalize/lower/codegen pipeline against a single
// job's submitted grammar source. It is the HTTP-facing service's only
// caller of the compiler packages.
func buildArtifacts(job dao.BuildJob) (buildJobArtifacts, error) {
	format := loader.Format(job.Format)

	files, err := loader.DecodeSources(job.GrammarSource)
	if err != nil {
		return buildJobArtifacts{}, err
	}

	g, err := loader.ParseFiles(format, job.Entry, files)
	if err != nil {
		return buildJobArtifacts{}, fmt.Errorf("[%s] %w", gferrors.KindOf(err), err)
	}

	normalized, err := grammar.Normalize(g, grammar.Options{Raw: job.Raw})
	if err != nil {
		return buildJobArtifacts{}, fmt.Errorf("[%s] %w", gferrors.KindOf(err), err)
	}

	dump, err := loader.Dump(normalized)
	if err != nil {
		return buildJobArtifacts{}, fmt.Errorf("dump normalized grammar: %w", err)
	}

	lowered := grammar.Lower(normalized)
	loweredBlob := rezi.EncBinary(lowered)

	src, hdr := codegen.Generate(lowered, codegen.Options{Seed: job.Seed})

	return buildJobArtifacts{
		grammar: dump,
		lowered: loweredBlob,
		source:  src,
		header:  hdr,
	}, nil
}

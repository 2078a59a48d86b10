package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dekarrin/gramforge/internal/loader"
	"github.com/dekarrin/gramforge/server/dao"
	"github.com/dekarrin/gramforge/server/result"
)

// authTokenRequest is the body expected by handleAuthToken.
type authTokenRequest struct {
	APIKey string `json:"api_key"`
}

// authTokenResponse is returned by handleAuthToken on success.
type authTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in_seconds"`
}

// handleAuthToken exchanges the configured shared API key for a bearer
// token good for one hour. It is the only unauthenticated route this
// service exposes.
func (s *Server) handleAuthToken(w http.ResponseWriter, req *http.Request) {
	var body authTokenRequest
	if err := parseJSONBody(req, &body); err != nil {
		result.BadRequest(err.Error(), err.Error()).WriteResponse(w)
		return
	}

	if err := bcrypt.CompareHashAndPassword(s.apiKeyHash, []byte(body.APIKey)); err != nil {
		time.Sleep(s.cfg.UnauthDelay())
		result.Unauthorized("api key is invalid", "api key rejected: %s", err.Error()).WriteResponse(w)
		return
	}

	tok, err := generateToken(s.secret)
	if err != nil {
		result.InternalServerError("generate token: %s", err.Error()).WriteResponse(w)
		return
	}

	result.OK(authTokenResponse{Token: tok, ExpiresIn: 3600}, "issued token").WriteResponse(w)
}

// jobModel is the JSON representation of a dao.BuildJob returned from the
// job endpoints. It omits the job's artifact blobs (GrammarSource,
// Grammar, Lowered, Source, Header) -- those are served by their own
// endpoints so a client listing or polling jobs isn't forced to pull
// megabytes of generated C it doesn't want yet.
type jobModel struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Format        string `json:"format"`
	Entry         string `json:"entry"`
	Raw           bool   `json:"raw"`
	Seed          uint64 `json:"seed"`
	Created       string `json:"created"`
	Modified      string `json:"modified"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func toJobModel(job dao.BuildJob) jobModel {
	return jobModel{
		ID:            job.ID.String(),
		Status:        job.Status.String(),
		Format:        job.Format,
		Entry:         job.Entry,
		Raw:           job.Raw,
		Seed:          job.Seed,
		Created:       job.Created.Format(time.RFC3339),
		Modified:      job.Modified.Format(time.RFC3339),
		FailureReason: job.FailureReason,
	}
}

// handleCreateJob accepts a multipart form containing one or more grammar
// source files (field name "grammar", repeatable) plus the "format",
// "entry", "raw", and "seed" fields, and queues a new build job for them.
func (s *Server) handleCreateJob(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		result.BadRequest("could not parse multipart form: "+err.Error(), err.Error()).WriteResponse(w)
		return
	}

	format := loader.Format(req.FormValue("format"))
	if format != loader.FormatPeacock && format != loader.FormatGramatron {
		result.BadRequest("format: must be 'peacock' or 'gramatron'", "bad format %q", format).WriteResponse(w)
		return
	}

	entry := req.FormValue("entry")
	if entry == "" {
		entry = "ENTRYPOINT"
	}

	raw := false
	if rawStr := req.FormValue("raw"); rawStr != "" {
		var err error
		raw, err = strconv.ParseBool(rawStr)
		if err != nil {
			result.BadRequest("raw: must be a boolean", "bad raw %q", rawStr).WriteResponse(w)
			return
		}
	}

	var seed uint64
	if seedStr := req.FormValue("seed"); seedStr != "" {
		parsed, err := strconv.ParseUint(seedStr, 10, 64)
		if err != nil {
			result.BadRequest("seed: must be an unsigned integer", "bad seed %q", seedStr).WriteResponse(w)
			return
		}
		seed = parsed
	}

	fileHeaders := req.MultipartForm.File["grammar"]
	if len(fileHeaders) == 0 {
		result.BadRequest("grammar: at least one grammar source file is required", "no files uploaded").WriteResponse(w)
		return
	}

	files := make([]loader.SourceFile, len(fileHeaders))
	for i, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			result.BadRequest("could not open uploaded file "+fh.Filename, err.Error()).WriteResponse(w)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			result.BadRequest("could not read uploaded file "+fh.Filename, err.Error()).WriteResponse(w)
			return
		}
		files[i] = loader.SourceFile{Name: fh.Filename, Data: data}
	}

	encoded, err := loader.EncodeSources(files)
	if err != nil {
		result.InternalServerError("encode grammar sources: %s", err.Error()).WriteResponse(w)
		return
	}

	job, err := s.submitJob(req.Context(), string(format), entry, raw, seed, encoded)
	if err != nil {
		result.InternalServerError("queue build job: %s", err.Error()).WriteResponse(w)
		return
	}

	result.Created(toJobModel(job), "queued build job %s", job.ID).WriteResponse(w)
}

// handleListJobs returns the status record of every job the service
// knows about, in storage order. Artifact blobs are not included; they
// are fetched per job once a client sees it reach "done".
func (s *Server) handleListJobs(w http.ResponseWriter, req *http.Request) {
	jobs, err := s.db.Jobs().GetAll(req.Context())
	if err != nil {
		result.InternalServerError("list jobs: %s", err.Error()).WriteResponse(w)
		return
	}

	models := make([]jobModel, len(jobs))
	for i, job := range jobs {
		models[i] = toJobModel(job)
	}

	result.OK(models, "listed %d jobs", len(models)).WriteResponse(w)
}

// jobIDParam reads and parses the "id" URL parameter shared by every
// single-job route.
func jobIDParam(req *http.Request) (uuid.UUID, error) {
	idStr := chi.URLParam(req, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("id: not a valid job ID: %w", err)
	}
	return id, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, req *http.Request) {
	id, err := jobIDParam(req)
	if err != nil {
		result.BadRequest(err.Error(), err.Error()).WriteResponse(w)
		return
	}

	job, err := s.db.Jobs().GetByID(req.Context(), id)
	if err != nil {
		writeJobLookupError(w, id, err)
		return
	}

	result.OK(toJobModel(job), "got job %s", id).WriteResponse(w)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, req *http.Request) {
	id, err := jobIDParam(req)
	if err != nil {
		result.BadRequest(err.Error(), err.Error()).WriteResponse(w)
		return
	}

	job, err := s.db.Jobs().Delete(req.Context(), id)
	if err != nil {
		writeJobLookupError(w, id, err)
		return
	}

	result.OK(toJobModel(job), "deleted job %s", id).WriteResponse(w)
}

// handleGetJobSource serves the emitted generator.c translation unit for a
// completed job.
func (s *Server) handleGetJobSource(w http.ResponseWriter, req *http.Request) {
	s.serveJobArtifact(w, req, "generator.c", "text/x-csrc", func(job dao.BuildJob) []byte {
		return job.Source
	})
}

// handleGetJobHeader serves the emitted generator.h header for a completed
// job.
func (s *Server) handleGetJobHeader(w http.ResponseWriter, req *http.Request) {
	s.serveJobArtifact(w, req, "generator.h", "text/x-chdr", func(job dao.BuildJob) []byte {
		return job.Header
	})
}

// handleGetJobGrammar serves the normalized grammar, dumped back out as
// peacock-format JSON, for a completed job.
func (s *Server) handleGetJobGrammar(w http.ResponseWriter, req *http.Request) {
	s.serveJobArtifact(w, req, "grammar.json", "application/json", func(job dao.BuildJob) []byte {
		return job.Grammar
	})
}

// serveJobArtifact looks up the job named by the "id" URL parameter and
// writes one of its artifact blobs as a file download, or an appropriate
// error result if the job doesn't exist, isn't done, or failed.
func (s *Server) serveJobArtifact(w http.ResponseWriter, req *http.Request, filename, contentType string, pick func(dao.BuildJob) []byte) {
	id, err := jobIDParam(req)
	if err != nil {
		result.BadRequest(err.Error(), err.Error()).WriteResponse(w)
		return
	}

	job, err := s.db.Jobs().GetByID(req.Context(), id)
	if err != nil {
		writeJobLookupError(w, id, err)
		return
	}

	switch job.Status {
	case dao.Done:
		// fall through
	case dao.Failed:
		result.Conflict(fmt.Sprintf("job %s failed: %s", id, job.FailureReason), "job failed").WriteResponse(w)
		return
	default:
		result.Conflict(fmt.Sprintf("job %s is still %s", id, job.Status), "job not done").WriteResponse(w)
		return
	}

	data := pick(job)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJobLookupError(w http.ResponseWriter, id uuid.UUID, err error) {
	if errors.Is(err, dao.ErrNotFound) {
		result.NotFound("job %s not found", id).WriteResponse(w)
		return
	}
	result.InternalServerError("look up job %s: %s", id, err.Error()).WriteResponse(w)
}

// parseJSONBody decodes req's body as JSON into v. Unlike the multipart
// job-creation endpoint, auth/token exchange is a plain small JSON body, so
// it is decoded directly rather than staged through a form parser.
func parseJSONBody(req *http.Request, v interface{}) error {
	defer req.Body.Close()
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed JSON in request body: %w", err)
	}
	return nil
}

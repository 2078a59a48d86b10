// Package dao provides data access objects for use in the gramforge build
// service.
package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConstraintViolation = errors.New("a uniqueness constraint was violated")
	ErrNotFound            = errors.New("the requested resource was not found")
	ErrDecodingFailure     = errors.New("field could not be decoded from DB storage format to model format")
)

// Store holds all the repositories needed by the build service.
type Store interface {
	Jobs() BuildJobRepository
	Close() error
}

// Status is the lifecycle state of a BuildJob.
type Status int

const (
	Pending Status = iota
	Running
	Done
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "pending":
		return Pending, nil
	case "running":
		return Running, nil
	case "done":
		return Done, nil
	case "failed":
		return Failed, nil
	default:
		return Pending, fmt.Errorf("must be one of 'pending', 'running', 'done', or 'failed'")
	}
}

// BuildJobRepository persists the state and artifacts of grammar compile
// jobs submitted to the build service.
type BuildJobRepository interface {
	// Create creates a new BuildJob. All attributes except for
	// auto-generated fields are taken from the provided BuildJob.
	Create(ctx context.Context, job BuildJob) (BuildJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (BuildJob, error)
	GetAll(ctx context.Context) ([]BuildJob, error)
	Update(ctx context.Context, id uuid.UUID, job BuildJob) (BuildJob, error)
	Delete(ctx context.Context, id uuid.UUID) (BuildJob, error)

	// Close closes the connection.
	Close() error
}

// BuildJob is one request to normalize, lower, and emit a grammar, along
// with whatever artifacts that processing has produced so far.
type BuildJob struct {
	ID       uuid.UUID // PK, NOT NULL
	Status   Status    // NOT NULL
	Format   string    // NOT NULL, "peacock" or "gramatron"
	Entry    string    // NOT NULL, start non-terminal name
	Raw      bool      // NOT NULL
	Seed     uint64    // NOT NULL
	Created  time.Time // NOT NULL
	Modified time.Time // NOT NULL

	// GrammarSource holds the grammar source files submitted with the job
	// (loader.EncodeSources of one or more loader.SourceFile), in the
	// format named by Format.
	GrammarSource []byte

	// Grammar holds the normalized grammar, dumped back out as
	// peacock-format JSON (loader.Dump), once Status is Done. Empty for
	// any other Status.
	Grammar []byte

	// Lowered holds the rezi-encoded grammar.LoweredGrammar once Status
	// is Done, so a job's artifacts can be regenerated or inspected
	// without re-running the normalizer and lowering pass. Empty for any
	// other Status.
	Lowered []byte

	// Source and Header hold the emitted generator.c/generator.h pair once
	// Status is Done. They are empty for any other Status.
	Source []byte
	Header []byte

	// FailureReason holds the grammar or I/O error that caused Status to
	// become Failed. Empty for any other Status.
	FailureReason string
}

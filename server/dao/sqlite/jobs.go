package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dekarrin/gramforge/server/dao"
	"github.com/google/uuid"
)

// BuildJobsDB is a sqlite-backed dao.BuildJobRepository.
type BuildJobsDB struct {
	db *sql.DB
}

func (repo *BuildJobsDB) init() error {
	stmt := `CREATE TABLE IF NOT EXISTS build_jobs (
		id TEXT NOT NULL PRIMARY KEY,
		status TEXT NOT NULL,
		format TEXT NOT NULL,
		entry TEXT NOT NULL,
		raw INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		created INTEGER NOT NULL,
		modified INTEGER NOT NULL,
		grammar_source BLOB NOT NULL,
		grammar BLOB,
		lowered BLOB,
		source BLOB,
		header BLOB,
		failure_reason TEXT NOT NULL
	);`
	_, err := repo.db.Exec(stmt)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (repo *BuildJobsDB) Create(ctx context.Context, job dao.BuildJob) (dao.BuildJob, error) {
	newUUID, err := uuid.NewRandom()
	if err != nil {
		return dao.BuildJob{}, fmt.Errorf("could not generate ID: %w", err)
	}

	stmt, err := repo.db.Prepare(`
		INSERT INTO build_jobs (
			id, status, format, entry, raw, seed, created, modified,
			grammar_source, grammar, lowered, source, header, failure_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return dao.BuildJob{}, wrapDBError(err)
	}
	now := time.Now()

	rawInt := 0
	if job.Raw {
		rawInt = 1
	}

	_, err = stmt.ExecContext(
		ctx,
		convertToDB_UUID(newUUID),
		job.Status.String(),
		job.Format,
		job.Entry,
		rawInt,
		job.Seed,
		convertToDB_Time(now),
		convertToDB_Time(now),
		job.GrammarSource,
		job.Grammar,
		job.Lowered,
		job.Source,
		job.Header,
		job.FailureReason,
	)
	if err != nil {
		return dao.BuildJob{}, wrapDBError(err)
	}

	return repo.GetByID(ctx, newUUID)
}

func (repo *BuildJobsDB) GetAll(ctx context.Context) ([]dao.BuildJob, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT id, status, format, entry, raw, seed, created, modified,
			grammar_source, grammar, lowered, source, header, failure_reason
		FROM build_jobs;
	`)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var all []dao.BuildJob

	for rows.Next() {
		job, err := scanBuildJob(rows)
		if err != nil {
			return all, err
		}
		all = append(all, job)
	}

	if err := rows.Err(); err != nil {
		return all, wrapDBError(err)
	}

	return all, nil
}

func (repo *BuildJobsDB) GetByID(ctx context.Context, id uuid.UUID) (dao.BuildJob, error) {
	row := repo.db.QueryRowContext(ctx, `
		SELECT status, format, entry, raw, seed, created, modified,
			grammar_source, grammar, lowered, source, header, failure_reason
		FROM build_jobs WHERE id = ?;
	`,
		convertToDB_UUID(id),
	)

	var statusStr string
	var rawInt int
	var created, modified int64
	job := dao.BuildJob{ID: id}

	err := row.Scan(
		&statusStr,
		&job.Format,
		&job.Entry,
		&rawInt,
		&job.Seed,
		&created,
		&modified,
		&job.GrammarSource,
		&job.Grammar,
		&job.Lowered,
		&job.Source,
		&job.Header,
		&job.FailureReason,
	)
	if err != nil {
		return job, wrapDBError(err)
	}

	if err := convertFromDB_Status(statusStr, &job.Status); err != nil {
		return job, fmt.Errorf("stored status %q is invalid: %w", statusStr, err)
	}
	job.Raw = rawInt != 0
	if err := convertFromDB_Time(created, &job.Created); err != nil {
		return job, fmt.Errorf("stored created time %d is invalid: %w", created, err)
	}
	if err := convertFromDB_Time(modified, &job.Modified); err != nil {
		return job, fmt.Errorf("stored modified time %d is invalid: %w", modified, err)
	}

	return job, nil
}

func (repo *BuildJobsDB) Update(ctx context.Context, id uuid.UUID, job dao.BuildJob) (dao.BuildJob, error) {
	rawInt := 0
	if job.Raw {
		rawInt = 1
	}

	res, err := repo.db.ExecContext(ctx, `
		UPDATE build_jobs SET
			status=?, format=?, entry=?, raw=?, seed=?, modified=?,
			grammar_source=?, grammar=?, lowered=?, source=?, header=?, failure_reason=?
		WHERE id=?;
	`,
		job.Status.String(),
		job.Format,
		job.Entry,
		rawInt,
		job.Seed,
		convertToDB_Time(time.Now()),
		job.GrammarSource,
		job.Grammar,
		job.Lowered,
		job.Source,
		job.Header,
		job.FailureReason,
		convertToDB_UUID(id),
	)
	if err != nil {
		return dao.BuildJob{}, wrapDBError(err)
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return dao.BuildJob{}, wrapDBError(err)
	}
	if rowsAff < 1 {
		return dao.BuildJob{}, dao.ErrNotFound
	}

	return repo.GetByID(ctx, id)
}

func (repo *BuildJobsDB) Delete(ctx context.Context, id uuid.UUID) (dao.BuildJob, error) {
	curVal, err := repo.GetByID(ctx, id)
	if err != nil {
		return curVal, err
	}

	res, err := repo.db.ExecContext(ctx, `DELETE FROM build_jobs WHERE id = ?`,
		convertToDB_UUID(id),
	)
	if err != nil {
		return curVal, wrapDBError(err)
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return curVal, wrapDBError(err)
	}
	if rowsAff < 1 {
		return curVal, dao.ErrNotFound
	}

	return curVal, nil
}

func (repo *BuildJobsDB) Close() error {
	return repo.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBuildJob(rows rowScanner) (dao.BuildJob, error) {
	var job dao.BuildJob
	var id, statusStr string
	var rawInt int
	var created, modified int64

	err := rows.Scan(
		&id,
		&statusStr,
		&job.Format,
		&job.Entry,
		&rawInt,
		&job.Seed,
		&created,
		&modified,
		&job.GrammarSource,
		&job.Grammar,
		&job.Lowered,
		&job.Source,
		&job.Header,
		&job.FailureReason,
	)
	if err != nil {
		return job, wrapDBError(err)
	}

	if err := convertFromDB_UUID(id, &job.ID); err != nil {
		return job, fmt.Errorf("stored ID %q is invalid: %w", id, err)
	}
	if err := convertFromDB_Status(statusStr, &job.Status); err != nil {
		return job, fmt.Errorf("stored status %q is invalid: %w", statusStr, err)
	}
	job.Raw = rawInt != 0
	if err := convertFromDB_Time(created, &job.Created); err != nil {
		return job, fmt.Errorf("stored created time %d is invalid: %w", created, err)
	}
	if err := convertFromDB_Time(modified, &job.Modified); err != nil {
		return job, fmt.Errorf("stored modified time %d is invalid: %w", modified, err)
	}

	return job, nil
}

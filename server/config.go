// Package server implements the gramforge-serve HTTP API: a job queue that
// accepts grammar sources, runs them through normalization, lowering, and C
// codegen in the background, and serves the resulting artifacts.
package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dekarrin/gramforge/server/dao"
	"github.com/dekarrin/gramforge/server/dao/sqlite"
)

// DBType is the type of a Database connection.
type DBType string

func (dbt DBType) String() string {
	return string(dbt)
}

const (
	DatabaseNone   DBType = "none"
	DatabaseSQLite DBType = "sqlite"
)

const (
	MaxSecretSize = 64
	MinSecretSize = 32
)

// ParseDBType parses a string found in a connection string into a DBType.
func ParseDBType(s string) (DBType, error) {
	if strings.ToLower(s) == DatabaseSQLite.String() {
		return DatabaseSQLite, nil
	}
	return DatabaseNone, fmt.Errorf("DB type not 'sqlite': %q", s)
}

// Database contains configuration settings for connecting to a persistence
// layer.
type Database struct {
	// Type is the type of database the config refers to. gramforge-serve
	// only supports sqlite; this field exists so Config's zero value can be
	// detected as unset and filled with a default.
	Type DBType

	// DataDir is the path on disk to a directory to use to store job
	// records and artifacts in.
	DataDir string
}

// Connect performs all logic needed to connect to the configured DB and
// initialize the store for use.
func (db Database) Connect() (dao.Store, error) {
	switch db.Type {
	case DatabaseSQLite:
		err := os.MkdirAll(db.DataDir, 0770)
		if err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		store, err := sqlite.NewDatastore(db.DataDir)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite: %w", err)
		}

		return store, nil
	case DatabaseNone:
		return nil, fmt.Errorf("cannot connect to 'none' DB")
	default:
		return nil, fmt.Errorf("unknown database type: %q", db.Type.String())
	}
}

// Validate returns an error if the Database does not have the correct fields
// set.
func (db Database) Validate() error {
	switch db.Type {
	case DatabaseSQLite:
		if db.DataDir == "" {
			return fmt.Errorf("DataDir not set to path")
		}
		return nil
	case DatabaseNone:
		return fmt.Errorf("'none' DB is not valid")
	default:
		return fmt.Errorf("unknown database type: %q", db.Type.String())
	}
}

// ParseDBConnString parses a database connection string of the form
// "sqlite:path/to/data/dir" into a valid Database config object.
func ParseDBConnString(s string) (Database, error) {
	var paramStr string
	dbParts := strings.SplitN(s, ":", 2)

	if len(dbParts) == 2 {
		paramStr = strings.TrimSpace(dbParts[1])
	}

	dbEng, err := ParseDBType(strings.TrimSpace(dbParts[0]))
	if err != nil {
		return Database{}, fmt.Errorf("unsupported DB engine: %w", err)
	}

	if paramStr == "" {
		return Database{}, fmt.Errorf("sqlite DB engine requires path to data directory after ':'")
	}

	return Database{Type: dbEng, DataDir: paramStr}, nil
}

// Config is a configuration for a gramforge-serve instance.
type Config struct {
	// TokenSecret is the secret used for signing and validating bearer
	// tokens. If not provided, a default key is used.
	TokenSecret []byte

	// APIKey is the shared secret clients exchange for a bearer token at
	// POST /api/v1/auth/token. If not provided, a default key is used.
	APIKey string

	// DB is the configuration to use for connecting to the database. If not
	// provided, a sqlite DB rooted at "./gramforge-data" is assumed.
	DB Database

	// MaxConcurrentBuilds bounds how many build jobs may run their
	// normalize/lower/codegen pipeline at once. Requests beyond this limit
	// queue in Pending status.
	MaxConcurrentBuilds int

	// UnauthDelayMillis is the amount of additional time to wait
	// (in milliseconds) before sending a response that indicates either that
	// the client was unauthorized or the client was unauthenticated. If not
	// set it will default to 1 second (1000ms). Set this to any negative
	// number to disable the delay.
	UnauthDelayMillis int
}

// UnauthDelay returns the configured time for the UnauthDelay as a
// time.Duration. If cfg.UnauthDelayMillis is set to a number less than 0,
// this will return a zero-valued time.Duration.
func (cfg Config) UnauthDelay() time.Duration {
	if cfg.UnauthDelayMillis < 1 {
		var dur time.Duration
		return dur
	}
	return time.Millisecond * time.Duration(cfg.UnauthDelayMillis)
}

// FillDefaults returns a new Config identical to cfg but with unset values
// set to their defaults.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg

	if newCFG.TokenSecret == nil {
		newCFG.TokenSecret = []byte("DEFAULT_TOKEN_SECRET-DO_NOT_USE_IN_PROD!")
	}
	if newCFG.APIKey == "" {
		newCFG.APIKey = "DEFAULT_API_KEY-DO_NOT_USE_IN_PROD"
	}
	if newCFG.DB.Type == "" || newCFG.DB.Type == DatabaseNone {
		newCFG.DB = Database{Type: DatabaseSQLite, DataDir: "./gramforge-data"}
	}
	if newCFG.MaxConcurrentBuilds < 1 {
		newCFG.MaxConcurrentBuilds = 4
	}
	if newCFG.UnauthDelayMillis == 0 {
		newCFG.UnauthDelayMillis = 1000
	}

	return newCFG
}

// Validate returns an error if the Config has invalid field values set. Empty
// and unset values are considered invalid; if defaults are intended to be
// used, call Validate on the return value of FillDefaults.
func (cfg Config) Validate() error {
	if len(cfg.TokenSecret) < MinSecretSize {
		return fmt.Errorf("token secret: must be at least %d bytes, but is %d", MinSecretSize, len(cfg.TokenSecret))
	}
	if len(cfg.TokenSecret) > MaxSecretSize {
		return fmt.Errorf("token secret: must be no more than %d bytes, but is %d", MaxSecretSize, len(cfg.TokenSecret))
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("api key: must not be empty")
	}
	if err := cfg.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if cfg.MaxConcurrentBuilds < 1 {
		return fmt.Errorf("max concurrent builds: must be at least 1")
	}

	return nil
}

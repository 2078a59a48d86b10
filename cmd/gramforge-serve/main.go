/*
Gramforge-serve runs the gramforge build service: an HTTP API that
accepts grammar source files, runs them through normalization, lowering,
and C codegen in the background, and serves the resulting artifacts.

Usage:

	gramforge-serve [flags]

By default it listens on localhost:8080 and stores job records and
artifacts in ./gramforge-data via sqlite. If a JWT token secret or API
key is not given, an insecure development default is used and a warning
is logged -- this is fine for trying the service out locally, but both
must be set explicitly for anything reachable outside localhost.

The flags are:

	-v, --version
		Give the current version of gramforge-serve and then exit.

	-c, --config FILE
		Load a TOML config file providing any of the Config fields (see
		server.Config). Flags and environment variables override
		whatever the config file sets.

	-l, --listen LISTEN_ADDRESS
		Listen on the given address. Must be in BIND_ADDRESS:PORT or
		:PORT format. Defaults to the value of environment variable
		GRAMFORGE_LISTEN_ADDRESS, and if that is unset, to localhost:8080.

	-s, --secret TOKEN_SECRET
		The secret used for signing bearer tokens. Defaults to the value
		of environment variable GRAMFORGE_TOKEN_SECRET.

	-k, --api-key KEY
		The shared secret clients exchange for a bearer token. Defaults
		to the value of environment variable GRAMFORGE_API_KEY.

	--db DRIVER:PARAMS
		The DB connection string. Only "sqlite:path/to/data/dir" is
		supported. Defaults to the value of environment variable
		GRAMFORGE_DATABASE, and if that is unset, to
		sqlite:./gramforge-data.

	-j, --max-jobs N
		Maximum number of build jobs that may run concurrently.
*/
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/dekarrin/gramforge/internal/version"
	"github.com/dekarrin/gramforge/server"
)

const (
	EnvListen = "GRAMFORGE_LISTEN_ADDRESS"
	EnvSecret = "GRAMFORGE_TOKEN_SECRET"
	EnvAPIKey = "GRAMFORGE_API_KEY"
	EnvDB     = "GRAMFORGE_DATABASE"
)

var (
	flagVersion = pflag.BoolP("version", "v", false, "Give the current version of gramforge-serve and then exit.")
	flagConfig  = pflag.StringP("config", "c", "", "Load a TOML config file.")
	flagListen  = pflag.StringP("listen", "l", "", "Listen on the given address.")
	flagSecret  = pflag.StringP("secret", "s", "", "Use the given secret for signing bearer tokens.")
	flagAPIKey  = pflag.StringP("api-key", "k", "", "Use the given shared secret for the auth/token exchange.")
	flagDB      = pflag.String("db", "", "Use the given DB connection string.")
	flagMaxJobs = pflag.IntP("max-jobs", "j", 0, "Maximum number of build jobs that may run concurrently.")
)

// fileConfig mirrors the subset of server.Config that may be set from a
// TOML config file; listen address is handled outside of server.Config
// since ServeForever takes it directly.
type fileConfig struct {
	Listen              string `toml:"listen"`
	TokenSecret         string `toml:"token_secret"`
	APIKey              string `toml:"api_key"`
	DB                  string `toml:"db"`
	MaxConcurrentBuilds int    `toml:"max_concurrent_builds"`
	UnauthDelayMillis   int    `toml:"unauth_delay_millis"`
}

func main() {
	pflag.Parse()

	if *flagVersion {
		fmt.Printf("gramforge-serve (gramforge v%s)\n", version.Current)
		return
	}

	if args := pflag.Args(); len(args) > 0 {
		fmt.Fprintf(os.Stderr, "Too many arguments\nDo -h for help.\n")
		os.Exit(1)
	}

	var fc fileConfig
	if *flagConfig != "" {
		if _, err := toml.DecodeFile(*flagConfig, &fc); err != nil {
			fmt.Fprintf(os.Stderr, "Could not read config file: %s\n", err.Error())
			os.Exit(1)
		}
	}

	listenAddr := firstNonEmpty(flagIfChanged("listen", *flagListen), fc.Listen, os.Getenv(EnvListen), "localhost:8080")

	secretStr := firstNonEmpty(flagIfChanged("secret", *flagSecret), fc.TokenSecret, os.Getenv(EnvSecret))
	apiKey := firstNonEmpty(flagIfChanged("api-key", *flagAPIKey), fc.APIKey, os.Getenv(EnvAPIKey))
	dbConnStr := firstNonEmpty(flagIfChanged("db", *flagDB), fc.DB, os.Getenv(EnvDB), "sqlite:./gramforge-data")

	maxJobs := fc.MaxConcurrentBuilds
	if pflag.Lookup("max-jobs").Changed {
		maxJobs = *flagMaxJobs
	}

	db, err := server.ParseDBConnString(dbConnStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\nDo -h for help.\n", err.Error())
		os.Exit(1)
	}

	cfg := server.Config{
		TokenSecret:         secretBytes(secretStr),
		APIKey:              apiKey,
		DB:                  db,
		MaxConcurrentBuilds: maxJobs,
		UnauthDelayMillis:   fc.UnauthDelayMillis,
	}
	cfg = cfg.FillDefaults()

	if secretStr == "" {
		log.Printf("WARN  Using default token secret; do not use this instance outside local testing")
	}
	if apiKey == "" {
		log.Printf("WARN  Using default API key; do not use this instance outside local testing")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", err.Error())
		os.Exit(1)
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("FATAL could not start server: %s", err.Error())
	}
	defer srv.Close()

	log.Printf("INFO  Starting gramforge-serve %s...", version.Current)
	if err := srv.ServeForever(listenAddr); err != nil {
		log.Fatalf("FATAL server exited: %s", err.Error())
	}
}

// flagIfChanged returns val if the named flag was actually given on the
// command line, and "" otherwise, so an explicitly-set empty string
// doesn't get masked by a config file or environment variable.
func flagIfChanged(name, val string) string {
	if f := pflag.Lookup(name); f != nil && f.Changed {
		return val
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// secretBytes repeats a short secret until it reaches the minimum
// accepted size, so a memorable dev-time secret still produces a key of
// usable length for HS512 signing.
func secretBytes(s string) []byte {
	if s == "" {
		return nil
	}
	b := []byte(s)
	for len(b) < server.MinSecretSize {
		b = append(b, b...)
	}
	if len(b) > server.MaxSecretSize {
		b = b[:server.MaxSecretSize]
	}
	return b
}

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Config_FillDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{}.FillDefaults()

	assert.NotEmpty(cfg.TokenSecret)
	assert.NotEmpty(cfg.APIKey)
	assert.Equal(DatabaseSQLite, cfg.DB.Type)
	assert.Equal("./gramforge-data", cfg.DB.DataDir)
	assert.Equal(4, cfg.MaxConcurrentBuilds)
	assert.Equal(1000, cfg.UnauthDelayMillis)
}

func Test_Config_FillDefaults_PreservesSetValues(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{
		TokenSecret:         []byte("0123456789012345678901234567890123456789"),
		APIKey:              "my-key",
		DB:                  Database{Type: DatabaseSQLite, DataDir: "/tmp/data"},
		MaxConcurrentBuilds: 8,
		UnauthDelayMillis:   -1,
	}.FillDefaults()

	assert.Equal("my-key", cfg.APIKey)
	assert.Equal("/tmp/data", cfg.DB.DataDir)
	assert.Equal(8, cfg.MaxConcurrentBuilds)
	assert.Equal(-1, cfg.UnauthDelayMillis)
}

func Test_Config_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		cfg       Config
		expectErr bool
	}{
		{
			name:      "filled defaults is valid",
			cfg:       Config{}.FillDefaults(),
			expectErr: false,
		},
		{
			name: "token secret too short",
			cfg: Config{
				TokenSecret:         []byte("short"),
				APIKey:              "key",
				DB:                  Database{Type: DatabaseSQLite, DataDir: "/tmp/data"},
				MaxConcurrentBuilds: 1,
			},
			expectErr: true,
		},
		{
			name: "empty API key",
			cfg: Config{
				TokenSecret:         []byte("0123456789012345678901234567890123456789"),
				APIKey:              "",
				DB:                  Database{Type: DatabaseSQLite, DataDir: "/tmp/data"},
				MaxConcurrentBuilds: 1,
			},
			expectErr: true,
		},
		{
			name: "zero max concurrent builds",
			cfg: Config{
				TokenSecret:         []byte("0123456789012345678901234567890123456789"),
				APIKey:              "key",
				DB:                  Database{Type: DatabaseSQLite, DataDir: "/tmp/data"},
				MaxConcurrentBuilds: 0,
			},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_Config_UnauthDelay(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(time.Duration(0), Config{UnauthDelayMillis: -1}.UnauthDelay())
	assert.Equal(time.Duration(0), Config{UnauthDelayMillis: 0}.UnauthDelay())
	assert.Equal(500*time.Millisecond, Config{UnauthDelayMillis: 500}.UnauthDelay())
}

func Test_ParseDBConnString(t *testing.T) {
	assert := assert.New(t)

	db, err := ParseDBConnString("sqlite:/tmp/data")
	assert.NoError(err)
	assert.Equal(DatabaseSQLite, db.Type)
	assert.Equal("/tmp/data", db.DataDir)

	_, err = ParseDBConnString("postgres:/tmp/data")
	assert.Error(err)

	_, err = ParseDBConnString("sqlite:")
	assert.Error(err)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cr0nhq/cr0n/pkg/errutil"
)

const latestVersion = 6

type fakeMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDBErr     error
}

func (m *fakeMigrate) Up() error                    { return m.upErr }
func (m *fakeMigrate) Down() error                  { return m.downErr }
func (m *fakeMigrate) Steps(_ int) error            { return m.stepsErr }
func (m *fakeMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *fakeMigrate) Force(_ int) error            { return m.forceErr }
func (m *fakeMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDBErr }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/cr0n")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@db:5432/cr0n", "pgx5://u:p@db:5432/cr0n"},
		{"postgresql://u:p@db:5432/cr0n", "pgx5://u:p@db:5432/cr0n"},
		{"pgx5://db/cr0n", "pgx5://db/cr0n"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, migrateURL(tt.in))
	}
}

func TestMigrator_ErrorCodes(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		m    *fakeMigrate
		call func(*Migrator) error
		code string
	}{
		{"up", &fakeMigrate{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &fakeMigrate{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", &fakeMigrate{stepsErr: boom}, func(m *Migrator) error { return m.Steps(2) }, "MIGRATION_STEPS_FAILED"},
		{"force", &fakeMigrate{forceErr: boom}, func(m *Migrator) error { return m.Force(2) }, "MIGRATION_FORCE_FAILED"},
		{"force negative", &fakeMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
		{"version", &fakeMigrate{versionErr: boom}, func(m *Migrator) error {
			_, _, err := m.Version()
			return err
		}, "MIGRATION_VERSION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errutil.AssertErrorCode(t, tt.call(&Migrator{m: tt.m}), tt.code)
		})
	}
}

func TestMigrator_NoChangeIsSuccess(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{
		upErr:    migrate.ErrNoChange,
		downErr:  migrate.ErrNoChange,
		stepsErr: migrate.ErrNoChange,
	}}
	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
	require.NoError(t, m.Steps(0))
}

func TestMigrator_Version(t *testing.T) {
	t.Run("dirty", func(t *testing.T) {
		version, dirty, err := (&Migrator{m: &fakeMigrate{versionVal: 4, dirty: true}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(4), version)
		assert.True(t, dirty)
	})

	t.Run("unmigrated database", func(t *testing.T) {
		version, dirty, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
		require.NoError(t, err)
		assert.Zero(t, version)
		assert.False(t, dirty)
	})
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		m         *fakeMigrate
		component string
	}{
		{"source", &fakeMigrate{closeSourceErr: errors.New("source")}, "source"},
		{"database", &fakeMigrate{closeDBErr: errors.New("database")}, "database"},
		{"both", &fakeMigrate{closeSourceErr: errors.New("source"), closeDBErr: errors.New("database")}, "both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.m}).Close()
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}

	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	tests := []struct {
		name    string
		m       *fakeMigrate
		pending []uint
		applied []uint
	}{
		{"fresh", &fakeMigrate{versionErr: migrate.ErrNilVersion}, []uint{1, 2, 3, 4, 5, 6}, nil},
		{"partial", &fakeMigrate{versionVal: 3}, []uint{4, 5, 6}, []uint{1, 2, 3}},
		{"latest", &fakeMigrate{versionVal: latestVersion}, nil, []uint{1, 2, 3, 4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: tt.m}

			pending, err := m.PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.pending, pending)

			applied, err := m.AppliedMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.applied, applied)
		})
	}

	t.Run("version error carries operation", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}
		_, err := m.PendingMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get pending migrations")
		_, err = m.AppliedMigrations()
		errutil.AssertErrorContext(t, err, "operation", "get applied migrations")
	})
}

func TestMigrator_Status(t *testing.T) {
	status, err := (&Migrator{m: &fakeMigrate{versionVal: 2}}).Status()
	require.NoError(t, err)
	assert.Equal(t, Status{
		Version: 2,
		Name:    "000002_sessions_tokens",
		Pending: []uint{3, 4, 5, 6},
	}, status)
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		version  uint
		expected string
	}{
		{1, "000001_users"},
		{2, "000002_sessions_tokens"},
		{3, "000003_sites"},
		{6, "000006_billing_events"},
		{999, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("version_%d", tt.version), func(t *testing.T) {
			name, err := MigrationName(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestEmbeddedMigrations_Ascending(t *testing.T) {
	files, err := embeddedMigrations()
	require.NoError(t, err)
	require.Len(t, files, latestVersion)

	for i, f := range files {
		assert.Equal(t, uint(i+1), f.Version)
		assert.Regexp(t, `^\d{6}_\w+$`, f.Name)
	}
}

func TestMigrator_StepsCarriesCount(t *testing.T) {
	err := (&Migrator{m: &fakeMigrate{stepsErr: errors.New("boom")}}).Steps(-2)
	errutil.AssertErrorCode(t, err, "MIGRATION_STEPS_FAILED")
	errutil.AssertErrorContext(t, err, "steps", -2)
}

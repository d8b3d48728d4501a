package project

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "datapulse/internal/errors"
	"datapulse/pkg/contracts/domain"
)

func mustSettings(dateColumn string) domain.ProjectSettings {
	return domain.ProjectSettings{DateColumn: dateColumn, TopColumns: []domain.TopColumn{}}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	return store
}

func TestCreateAndListProjects(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create("beta", "second")
	require.NoError(t, err)
	info, err := store.Create("alpha", "first")
	require.NoError(t, err)
	assert.Equal(t, "alpha", info.Name)
	assert.False(t, info.CreatedAt.IsZero())

	projects, err := store.List()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "alpha", projects[0].Name)
	assert.Equal(t, "beta", projects[1].Name)
}

func TestCreateDuplicateProject(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	_, err = store.Create("sales", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestCreateRejectsEmptyName(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"", "   ", "///"} {
		_, err := store.Create(name, "")
		assert.Error(t, err, "name %q", name)
	}
}

func TestDeleteProject(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	require.NoError(t, store.Delete("sales"))
	assert.False(t, store.Exists("sales"))

	err = store.Delete("sales")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestSettingsDefaultAndRoundTrip(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	settings, err := store.Settings("sales")
	require.NoError(t, err)
	assert.Empty(t, settings.DateColumn)

	settings.DateColumn = "Date"
	settings.TopColumns = []domain.TopColumn{{Column: "Region", DisplayName: "Region"}}
	require.NoError(t, store.SaveSettings("sales", settings))

	got, err := store.Settings("sales")
	require.NoError(t, err)
	assert.Equal(t, "Date", got.DateColumn)
	require.Len(t, got.TopColumns, 1)
	assert.Equal(t, "Region", got.TopColumns[0].Column)

	dateCol, err := store.DateColumn("sales")
	require.NoError(t, err)
	assert.Equal(t, "Date", dateCol)
}

func TestSettingsUnknownProject(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Settings("ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestLoadDatasetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	_, err = store.LoadDataset("sales")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = store.LoadDataset("ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestAuditLogCapped(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	for i := 0; i < auditLogCap+25; i++ {
		require.NoError(t, store.AppendAudit("sales", domain.AuditFilesUploaded, "file.xlsx"))
	}

	log, err := store.AuditLog("sales")
	require.NoError(t, err)
	assert.Len(t, log, auditLogCap)
}

func TestAuditLogNewestFirst(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create("sales", "")
	require.NoError(t, err)

	require.NoError(t, store.AppendAudit("sales", domain.AuditProjectCreated, "sales"))
	require.NoError(t, store.AppendAudit("sales", domain.AuditFilesUploaded, "jan.xlsx"))

	log, err := store.AuditLog("sales")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, domain.AuditFilesUploaded, log[0].Action)
	assert.Equal(t, domain.AuditProjectCreated, log[1].Action)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "sales", want: "sales"},
		{name: "spaces", in: "q1 sales", want: "q1_sales"},
		{name: "traversal", in: "../../etc", want: "etc"},
		{name: "unicode stripped", in: "café", want: "caf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeName(tt.in))
		})
	}
}

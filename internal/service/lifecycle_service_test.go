package service

import (
	"testing"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLifecycle(t *testing.T) (*LifecycleService, *VersionService, repository.CaseStudyRepository, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	caseStudyRepo := repository.NewCaseStudyRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	ledger := NewVersionService(db, caseStudyRepo, versionRepo, 5)
	lifecycle := NewLifecycleService(db, caseStudyRepo, ledger, nil)
	return lifecycle, ledger, caseStudyRepo, db
}

func TestSoftDelete(t *testing.T) {
	lifecycle, _, repo, _ := setupLifecycle(t)
	cs := createCaseStudy(t, repo, "cs-1")
	require.NoError(t, repo.UpdateFields(cs.ID, map[string]interface{}{"is_published": true}))

	version, err := lifecycle.SoftDelete("cs-1", "duplicate source", "admin1")
	require.NoError(t, err)
	require.NotNil(t, version)
	assert.Equal(t, domain.ChangeTypeSoftDelete, version.ChangeType)
	assert.Equal(t, 1, version.VersionNumber)

	reloaded, err := repo.FindByID("cs-1")
	require.NoError(t, err)
	assert.True(t, reloaded.IsDeleted())
	assert.False(t, reloaded.IsPublished, "delete must unpublish")
	require.NotNil(t, reloaded.DeletedBy)
	assert.Equal(t, "admin1", *reloaded.DeletedBy)
	require.NotNil(t, reloaded.DeleteReason)
	assert.Equal(t, "duplicate source", *reloaded.DeleteReason)
	assert.Equal(t, 1, reloaded.CurrentVersion)
}

func TestSoftDeleteAlreadyDeleted(t *testing.T) {
	lifecycle, _, repo, db := setupLifecycle(t)
	createCaseStudy(t, repo, "cs-1")

	_, err := lifecycle.SoftDelete("cs-1", "first", "admin1")
	require.NoError(t, err)

	_, err = lifecycle.SoftDelete("cs-1", "second", "admin1")
	assert.ErrorIs(t, err, common.ErrAlreadyDeleted)

	// The rejected call must not leave a version record behind
	var count int64
	db.Model(&domain.CaseStudyVersion{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRestoreActiveRecord(t *testing.T) {
	lifecycle, _, repo, _ := setupLifecycle(t)
	createCaseStudy(t, repo, "cs-1")

	_, err := lifecycle.Restore("cs-1", "admin1")
	assert.ErrorIs(t, err, common.ErrNotDeleted)
}

func TestRestoreClearsDeleteState(t *testing.T) {
	lifecycle, _, repo, _ := setupLifecycle(t)
	createCaseStudy(t, repo, "cs-1")

	_, err := lifecycle.SoftDelete("cs-1", "cleanup", "admin1")
	require.NoError(t, err)

	version, err := lifecycle.Restore("cs-1", "admin2")
	require.NoError(t, err)
	require.NotNil(t, version)
	assert.Equal(t, domain.ChangeTypeRestore, version.ChangeType)

	reloaded, err := repo.FindByID("cs-1")
	require.NoError(t, err)
	assert.False(t, reloaded.IsDeleted())
	assert.Nil(t, reloaded.DeletedAt)
	assert.Nil(t, reloaded.DeletedBy)
	assert.Nil(t, reloaded.DeleteReason)
	assert.False(t, reloaded.IsPublished, "restore does not republish")
}

func TestDeleteRestoreDeleteSequence(t *testing.T) {
	lifecycle, ledger, repo, _ := setupLifecycle(t)
	createCaseStudy(t, repo, "cs-1")

	// Land the record at version 2 with ordinary edits first
	for _, title := range []string{"first edit", "second edit"} {
		_, err := ledger.RecordChange("cs-1",
			domain.ChangeTypeContent,
			domain.JSONMap{"title": "before " + title},
			domain.JSONMap{"title": title},
			"", "editor1")
		require.NoError(t, err)
	}

	_, err := lifecycle.SoftDelete("cs-1", "takedown", "admin1")
	require.NoError(t, err)
	_, err = lifecycle.Restore("cs-1", "admin1")
	require.NoError(t, err)
	_, err = lifecycle.SoftDelete("cs-1", "takedown again", "admin1")
	require.NoError(t, err)

	history, err := ledger.GetVersionHistory("cs-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 5)

	// Newest first: the lifecycle transitions occupy versions 3, 4, 5
	assert.Equal(t, 5, history[0].VersionNumber)
	assert.Equal(t, domain.ChangeTypeSoftDelete, history[0].ChangeType)
	assert.Equal(t, 4, history[1].VersionNumber)
	assert.Equal(t, domain.ChangeTypeRestore, history[1].ChangeType)
	assert.Equal(t, 3, history[2].VersionNumber)
	assert.Equal(t, domain.ChangeTypeSoftDelete, history[2].ChangeType)

	reloaded, err := repo.FindByID("cs-1")
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.CurrentVersion)
	assert.True(t, reloaded.IsDeleted())
}

func TestSoftDeleteMissingRecord(t *testing.T) {
	lifecycle, _, _, _ := setupLifecycle(t)

	_, err := lifecycle.SoftDelete("missing", "reason", "admin1")
	assert.ErrorIs(t, err, common.ErrCaseStudyNotFound)
}

package service

import (
	"testing"
	"time"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCaseStudyService(t *testing.T) (*CaseStudyService, *LifecycleService, repository.CaseStudyRepository) {
	t.Helper()
	db := setupTestDB(t)
	caseStudyRepo := repository.NewCaseStudyRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	ledger := NewVersionService(db, caseStudyRepo, versionRepo, 5)
	lifecycle := NewLifecycleService(db, caseStudyRepo, ledger, nil)
	svc := NewCaseStudyService(db, caseStudyRepo, ledger, nil)
	return svc, lifecycle, caseStudyRepo
}

func TestCreateCaseStudy(t *testing.T) {
	svc, _, repo := setupCaseStudyService(t)

	cs := &domain.CaseStudy{
		Title:     "New case study",
		Summary:   "summary",
		CreatedBy: "generator",
	}
	require.NoError(t, svc.CreateCaseStudy(cs))
	assert.NotEmpty(t, cs.ID, "id is assigned when missing")
	assert.Equal(t, 0, cs.CurrentVersion, "creation is not a versioned mutation")

	stored, err := repo.FindByID(cs.ID)
	require.NoError(t, err)
	assert.Equal(t, "New case study", stored.Title)
}

func TestUpdateCaseStudy(t *testing.T) {
	svc, _, repo := setupCaseStudyService(t)
	createCaseStudy(t, repo, "cs-1")

	cs, version, err := svc.UpdateCaseStudy("cs-1",
		map[string]interface{}{"title": "Edited title", "summary": "Edited summary"},
		domain.ChangeTypeContent, "clarity pass", "editor1")
	require.NoError(t, err)
	require.NotNil(t, version)

	assert.Equal(t, 1, version.VersionNumber)
	assert.Equal(t, domain.ChangeTypeContent, version.ChangeType)
	assert.Equal(t, domain.StringList{"summary", "title"}, version.ChangedFields)
	assert.Equal(t, "Initial title", version.PreviousValues["title"])
	assert.Equal(t, "Edited title", version.NewValues["title"])

	assert.Equal(t, "Edited title", cs.Title)
	assert.Equal(t, 1, cs.CurrentVersion)
}

func TestUpdateCaseStudyNoOp(t *testing.T) {
	svc, _, repo := setupCaseStudyService(t)
	createCaseStudy(t, repo, "cs-1")

	cs, version, err := svc.UpdateCaseStudy("cs-1",
		map[string]interface{}{"title": "Initial title"},
		domain.ChangeTypeContent, "", "editor1")
	require.NoError(t, err)
	assert.Nil(t, version, "identical values are a no-op")
	assert.Equal(t, 0, cs.CurrentVersion)
}

func TestUpdateCaseStudyProtectedFields(t *testing.T) {
	svc, _, repo := setupCaseStudyService(t)
	createCaseStudy(t, repo, "cs-1")

	protected := []string{"id", "current_version", "config_version_hash", "deleted_at", "created_at"}
	for _, field := range protected {
		_, _, err := svc.UpdateCaseStudy("cs-1",
			map[string]interface{}{field: "x"},
			domain.ChangeTypeMetadata, "", "editor1")
		assert.ErrorIs(t, err, common.ErrProtectedField, "field %s must be rejected", field)
	}
}

func TestUpdateCaseStudyInvalidChangeType(t *testing.T) {
	svc, _, repo := setupCaseStudyService(t)
	createCaseStudy(t, repo, "cs-1")

	_, _, err := svc.UpdateCaseStudy("cs-1",
		map[string]interface{}{"title": "x"},
		"soft_delete", "", "editor1")
	assert.ErrorIs(t, err, common.ErrInvalidInput, "lifecycle change types are reserved")

	_, _, err = svc.UpdateCaseStudy("cs-1",
		map[string]interface{}{"title": "x"},
		"bogus", "", "editor1")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestUpdateDeletedCaseStudy(t *testing.T) {
	svc, lifecycle, repo := setupCaseStudyService(t)
	createCaseStudy(t, repo, "cs-1")

	_, err := lifecycle.SoftDelete("cs-1", "cleanup", "admin1")
	require.NoError(t, err)

	_, _, err = svc.UpdateCaseStudy("cs-1",
		map[string]interface{}{"title": "x"},
		domain.ChangeTypeContent, "", "editor1")
	assert.ErrorIs(t, err, common.ErrAlreadyDeleted)
}

func TestUpdateCaseStudyNormalization(t *testing.T) {
	svc, _, repo := setupCaseStudyService(t)
	createCaseStudy(t, repo, "cs-1")

	// JSON-decoded request bodies arrive as map/[]interface{}/string
	cs, version, err := svc.UpdateCaseStudy("cs-1",
		map[string]interface{}{
			"sections":       map[string]interface{}{"intro": "rewritten"},
			"tags":           []interface{}{"fintech", "b2b"},
			"scheduled_date": "2026-09-01T09:00:00Z",
		},
		domain.ChangeTypeContent, "", "editor1")
	require.NoError(t, err)
	require.NotNil(t, version)

	assert.Equal(t, "rewritten", cs.Sections["intro"])
	assert.Equal(t, domain.StringList{"fintech", "b2b"}, cs.Tags)
	require.NotNil(t, cs.ScheduledDate)
	assert.Equal(t, time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC), cs.ScheduledDate.UTC())
}

func TestUpdateCaseStudyBadValues(t *testing.T) {
	svc, _, repo := setupCaseStudyService(t)
	createCaseStudy(t, repo, "cs-1")

	tests := []struct {
		name   string
		fields map[string]interface{}
	}{
		{"non-string title", map[string]interface{}{"title": 42}},
		{"non-bool is_published", map[string]interface{}{"is_published": "yes"}},
		{"non-object sections", map[string]interface{}{"sections": "text"}},
		{"non-string tag", map[string]interface{}{"tags": []interface{}{1, 2}}},
		{"bad scheduled_date", map[string]interface{}{"scheduled_date": "tomorrow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.UpdateCaseStudy("cs-1", tt.fields, domain.ChangeTypeContent, "", "editor1")
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestGetCaseStudyHidesDeleted(t *testing.T) {
	svc, lifecycle, repo := setupCaseStudyService(t)
	createCaseStudy(t, repo, "cs-1")

	_, err := lifecycle.SoftDelete("cs-1", "cleanup", "admin1")
	require.NoError(t, err)

	_, err = svc.GetCaseStudy("cs-1", false)
	assert.ErrorIs(t, err, common.ErrCaseStudyNotFound)

	cs, err := svc.GetCaseStudy("cs-1", true)
	require.NoError(t, err)
	assert.True(t, cs.IsDeleted())
}

func TestListCaseStudies(t *testing.T) {
	svc, lifecycle, repo := setupCaseStudyService(t)
	for _, id := range []string{"cs-1", "cs-2", "cs-3"} {
		createCaseStudy(t, repo, id)
	}
	_, err := lifecycle.SoftDelete("cs-2", "cleanup", "admin1")
	require.NoError(t, err)

	active, total, err := svc.ListCaseStudies(1, 20, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, active, 2)

	all, total, err := svc.ListCaseStudies(1, 20, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
}

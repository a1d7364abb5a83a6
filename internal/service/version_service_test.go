package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.CaseStudy{},
		&domain.CaseStudyVersion{},
		&domain.PropagationJob{},
		&domain.GenerationSetting{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func setupLedger(t *testing.T, window int) (*VersionService, repository.CaseStudyRepository, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	caseStudyRepo := repository.NewCaseStudyRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	ledger := NewVersionService(db, caseStudyRepo, versionRepo, window)
	return ledger, caseStudyRepo, db
}

func createCaseStudy(t *testing.T, repo repository.CaseStudyRepository, id string) *domain.CaseStudy {
	t.Helper()
	cs := &domain.CaseStudy{
		ID:         id,
		Title:      "Initial title",
		Summary:    "Initial summary",
		SourceURL:  "https://example.com/article",
		SourceName: "example",
		CreatedBy:  "generator",
	}
	require.NoError(t, repo.Create(cs))
	return cs
}

func TestComputeChangedFields(t *testing.T) {
	tests := []struct {
		name     string
		previous domain.JSONMap
		updated  domain.JSONMap
		want     []string
	}{
		{
			name:     "no changes",
			previous: domain.JSONMap{"title": "a", "summary": "b"},
			updated:  domain.JSONMap{"title": "a", "summary": "b"},
			want:     nil,
		},
		{
			name:     "value changed",
			previous: domain.JSONMap{"title": "a"},
			updated:  domain.JSONMap{"title": "b"},
			want:     []string{"title"},
		},
		{
			name:     "key only in updated",
			previous: domain.JSONMap{},
			updated:  domain.JSONMap{"deleted_at": "now"},
			want:     []string{"deleted_at"},
		},
		{
			name:     "key only in previous",
			previous: domain.JSONMap{"scheduled_date": "2026-01-01"},
			updated:  domain.JSONMap{},
			want:     []string{"scheduled_date"},
		},
		{
			name:     "deep equal nested values are not changes",
			previous: domain.JSONMap{"sections": domain.JSONMap{"intro": "x"}},
			updated:  domain.JSONMap{"sections": domain.JSONMap{"intro": "x"}},
			want:     nil,
		},
		{
			name:     "sorted output",
			previous: domain.JSONMap{"title": "a", "summary": "b"},
			updated:  domain.JSONMap{"title": "c", "summary": "d"},
			want:     []string{"summary", "title"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeChangedFields(tt.previous, tt.updated)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordChangeNoOp(t *testing.T) {
	ledger, repo, db := setupLedger(t, 5)
	cs := createCaseStudy(t, repo, "cs-1")

	version, err := ledger.RecordChange("cs-1",
		domain.ChangeTypeContent,
		domain.JSONMap{"title": "same"},
		domain.JSONMap{"title": "same"},
		"", "editor1")
	require.NoError(t, err)
	assert.Nil(t, version)

	var count int64
	db.Model(&domain.CaseStudyVersion{}).Count(&count)
	assert.Equal(t, int64(0), count)

	reloaded, err := repo.FindByID(cs.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.CurrentVersion)
}

func TestRecordChangeMonotonicVersions(t *testing.T) {
	ledger, repo, _ := setupLedger(t, 10)
	createCaseStudy(t, repo, "cs-1")

	for i := 1; i <= 3; i++ {
		version, err := ledger.RecordChange("cs-1",
			domain.ChangeTypeContent,
			domain.JSONMap{"title": fmt.Sprintf("v%d", i-1)},
			domain.JSONMap{"title": fmt.Sprintf("v%d", i)},
			"", "editor1")
		require.NoError(t, err)
		require.NotNil(t, version)
		assert.Equal(t, i, version.VersionNumber)

		reloaded, err := repo.FindByID("cs-1")
		require.NoError(t, err)
		assert.Equal(t, i, reloaded.CurrentVersion, "pointer must follow the ledger")
	}
}

func TestRecordChangeRestrictsValueMaps(t *testing.T) {
	ledger, repo, _ := setupLedger(t, 5)
	createCaseStudy(t, repo, "cs-1")

	version, err := ledger.RecordChange("cs-1",
		domain.ChangeTypeMetadata,
		domain.JSONMap{"title": "old", "summary": "kept"},
		domain.JSONMap{"title": "new", "summary": "kept"},
		"tweak", "editor1")
	require.NoError(t, err)
	require.NotNil(t, version)

	assert.Equal(t, domain.StringList{"title"}, version.ChangedFields)
	assert.Equal(t, "old", version.PreviousValues["title"])
	assert.Equal(t, "new", version.NewValues["title"])
	assert.NotContains(t, version.PreviousValues, "summary")
	assert.NotContains(t, version.NewValues, "summary")
	assert.Equal(t, "tweak", version.ChangeReason)
	assert.Equal(t, "editor1", version.CreatedBy)
}

func TestRetentionPruning(t *testing.T) {
	ledger, repo, _ := setupLedger(t, 5)
	createCaseStudy(t, repo, "cs-1")

	// 8 distinct updates against a window of 5
	for i := 1; i <= 8; i++ {
		_, err := ledger.RecordChange("cs-1",
			domain.ChangeTypeContent,
			domain.JSONMap{"title": fmt.Sprintf("v%d", i-1)},
			domain.JSONMap{"title": fmt.Sprintf("v%d", i)},
			"", "editor1")
		require.NoError(t, err)
	}

	history, err := ledger.GetVersionHistory("cs-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 5)

	var got []int
	for _, v := range history {
		got = append(got, v.VersionNumber)
	}
	assert.Equal(t, []int{8, 7, 6, 5, 4}, got, "only the 5 most recent survive, newest first")

	reloaded, err := repo.FindByID("cs-1")
	require.NoError(t, err)
	assert.Equal(t, 8, reloaded.CurrentVersion)
}

func TestGetVersionHistoryBoundedByWindow(t *testing.T) {
	ledger, repo, _ := setupLedger(t, 3)
	createCaseStudy(t, repo, "cs-1")

	for i := 1; i <= 4; i++ {
		_, err := ledger.RecordChange("cs-1",
			domain.ChangeTypeContent,
			domain.JSONMap{"title": fmt.Sprintf("v%d", i-1)},
			domain.JSONMap{"title": fmt.Sprintf("v%d", i)},
			"", "editor1")
		require.NoError(t, err)
	}

	// A limit above the window is clamped to the window
	history, err := ledger.GetVersionHistory("cs-1", 50)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	history, err = ledger.GetVersionHistory("cs-1", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 4, history[0].VersionNumber)
}

func TestGetVersionHistoryUnknownID(t *testing.T) {
	ledger, _, _ := setupLedger(t, 5)

	_, err := ledger.GetVersionHistory("missing", 0)
	assert.Error(t, err)
}

// failingVersionRepo simulates an audit store outage
type failingVersionRepo struct {
	repository.VersionRepository
}

func (r *failingVersionRepo) WithTx(tx *gorm.DB) repository.VersionRepository {
	return &failingVersionRepo{r.VersionRepository.WithTx(tx)}
}

func (r *failingVersionRepo) Create(version *domain.CaseStudyVersion) error {
	return errors.New("audit store down")
}

func TestRecordChangeFailsAtomically(t *testing.T) {
	db := setupTestDB(t)
	caseStudyRepo := repository.NewCaseStudyRepository(db)
	versionRepo := &failingVersionRepo{repository.NewVersionRepository(db)}
	ledger := NewVersionService(db, caseStudyRepo, versionRepo, 5)

	createCaseStudy(t, caseStudyRepo, "cs-1")

	_, err := ledger.RecordChange("cs-1",
		domain.ChangeTypeContent,
		domain.JSONMap{"title": "old"},
		domain.JSONMap{"title": "new"},
		"", "editor1")
	require.Error(t, err)

	// Nothing committed: no version record and no pointer change
	var count int64
	db.Model(&domain.CaseStudyVersion{}).Count(&count)
	assert.Equal(t, int64(0), count)

	reloaded, err := caseStudyRepo.FindByID("cs-1")
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.CurrentVersion)
}

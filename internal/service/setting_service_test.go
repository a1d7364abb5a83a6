package service

import (
	"testing"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSettingService(t *testing.T) (*SettingService, *PropagationService, repository.CaseStudyRepository) {
	t.Helper()
	db := setupTestDB(t)
	caseStudyRepo := repository.NewCaseStudyRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	jobRepo := repository.NewJobRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	ledger := NewVersionService(db, caseStudyRepo, versionRepo, 5)
	propagation := NewPropagationService(db, caseStudyRepo, jobRepo, ledger, nil, 10)
	svc := NewSettingService(settingRepo, propagation, nil)
	return svc, propagation, caseStudyRepo
}

func TestUpdateSettingCreatesAndBumps(t *testing.T) {
	svc, propagation, _ := setupSettingService(t)

	setting, _, err := svc.UpdateSetting("generation.tone", "formal", "admin1")
	require.NoError(t, err)
	assert.Equal(t, 1, setting.Version)
	firstHash := setting.VersionHash()

	setting, _, err = svc.UpdateSetting("generation.tone", "casual", "admin1")
	require.NoError(t, err)
	assert.Equal(t, 2, setting.Version)
	assert.NotEqual(t, firstHash, setting.VersionHash(), "fingerprint changes with every version")

	propagation.Wait()
}

func TestUpdateSettingStampsFingerprint(t *testing.T) {
	svc, propagation, caseRepo := setupSettingService(t)
	seedCaseStudies(t, caseRepo, 3)

	setting, jobID, err := svc.UpdateSetting("generation.model", "large", "admin1")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	propagation.Wait()

	job, err := propagation.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Total)
	assert.Equal(t, 3, job.Processed)

	want := setting.VersionHash()
	for _, id := range []string{"cs-01", "cs-02", "cs-03"} {
		cs, err := caseRepo.FindByID(id)
		require.NoError(t, err)
		assert.Equal(t, want, cs.ConfigVersionHash)
		assert.Equal(t, 1, cs.CurrentVersion)
	}
}

func TestGetSettingUnknownKey(t *testing.T) {
	svc, _, _ := setupSettingService(t)

	_, err := svc.GetSetting("missing")
	assert.ErrorIs(t, err, common.ErrSettingNotFound)
}

func TestListSettings(t *testing.T) {
	svc, propagation, _ := setupSettingService(t)

	_, _, err := svc.UpdateSetting("generation.tone", "formal", "admin1")
	require.NoError(t, err)
	_, _, err = svc.UpdateSetting("generation.model", "large", "admin1")
	require.NoError(t, err)
	propagation.Wait()

	settings, err := svc.ListSettings()
	require.NoError(t, err)
	assert.Len(t, settings, 2)
}

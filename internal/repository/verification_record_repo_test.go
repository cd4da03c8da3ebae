package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"schoolportal/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueForTest(t *testing.T, repo VerificationRecordRepository, owner entity.OwnerRef, token string, now time.Time) *entity.VerificationRecord {
	t.Helper()
	record, err := repo.IssueFor(t.Context(), IssueParams{
		Owner:     owner,
		Type:      entity.EmailVerificationTypeFor(owner.Kind),
		Token:     token,
		EmailHash: "email-hash",
		TTL:       24 * time.Hour,
		Now:       now,
	})
	require.NoError(t, err)
	return record
}

func TestVerificationRecordRepository_IssueForSupersedesPending(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)
	school := seedSchoolForTest(t, db, "C001")
	owner := school.Principal().Ref()

	first := issueForTest(t, repo, owner, "token-one", testNow)
	second := issueForTest(t, repo, owner, "token-two", testNow.Add(time.Minute))

	var pending []entity.VerificationRecord
	require.NoError(t, db.
		Where("owner_id = ? AND type = ? AND status = ?", owner.ID, entity.SchoolEmailVerification, entity.VerificationPending).
		Find(&pending).Error)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, testNow.Add(time.Minute).Add(24*time.Hour), pending[0].ExpiresAt.UTC())

	err := repo.Redeem(t.Context(), owner, entity.SchoolEmailVerification, "token-one", testNow.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrRecordNotFound)

	err = repo.Redeem(t.Context(), owner, entity.SchoolEmailVerification, "token-two", testNow.Add(2*time.Minute))
	assert.NoError(t, err)
}

func TestVerificationRecordRepository_IssueForKeepsOtherTypesAndOwners(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)
	school := seedSchoolForTest(t, db, "C002")
	other := seedSchoolForTest(t, db, "C003")
	owner := school.Principal().Ref()

	issueForTest(t, repo, owner, "verify-token", testNow)
	issueForTest(t, repo, other.Principal().Ref(), "other-token", testNow)
	_, err := repo.IssueFor(t.Context(), IssueParams{
		Owner:     owner,
		Type:      entity.SchoolPasswordReset,
		Token:     "reset-token",
		EmailHash: "email-hash",
		TTL:       time.Hour,
		Now:       testNow,
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&entity.VerificationRecord{}).Where("status = ?", entity.VerificationPending).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestVerificationRecordRepository_IssueForRejectsUnknownKind(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)

	_, err := repo.IssueFor(t.Context(), IssueParams{
		Owner: entity.OwnerRef{Kind: "parent"},
		Type:  entity.AdminEmailVerification,
		Token: "token",
		TTL:   time.Hour,
		Now:   testNow,
	})
	assert.ErrorIs(t, err, ErrInvalidOwnerKind)
}

func TestVerificationRecordRepository_RedeemOnce(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)
	admin := seedAdminForTest(t, db, "admin-hash-1")
	owner := admin.Principal().Ref()
	issueForTest(t, repo, owner, "admin-token", testNow)

	require.NoError(t, repo.Redeem(t.Context(), owner, entity.AdminEmailVerification, "admin-token", testNow.Add(time.Hour)))

	err := repo.Redeem(t.Context(), owner, entity.AdminEmailVerification, "admin-token", testNow.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrRecordAlreadyUsed)

	record, err := repo.FindLatest(t.Context(), owner, entity.AdminEmailVerification)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, entity.VerificationVerified, record.Status)
	assert.True(t, record.Used)
	require.NotNil(t, record.UsedAt)
	assert.Equal(t, testNow.Add(time.Hour), record.UsedAt.UTC())
}

func TestVerificationRecordRepository_RedeemConcurrency(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)
	school := seedSchoolForTest(t, db, "C004")
	owner := school.Principal().Ref()
	issueForTest(t, repo, owner, "race-token", testNow)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = repo.Redeem(t.Context(), owner, entity.SchoolEmailVerification, "race-token", testNow.Add(time.Minute))
		}(i)
	}
	wg.Wait()

	success, alreadyUsed := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			success++
		case assert.ErrorIs(t, err, ErrRecordAlreadyUsed):
			alreadyUsed++
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, workers-1, alreadyUsed)

	record, err := repo.FindLatest(t.Context(), owner, entity.SchoolEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, entity.VerificationVerified, record.Status)
}

func TestVerificationRecordRepository_RedeemExpired(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)
	school := seedSchoolForTest(t, db, "C005")
	owner := school.Principal().Ref()
	issued := issueForTest(t, repo, owner, "old-token", testNow)

	err := repo.Redeem(t.Context(), owner, entity.SchoolEmailVerification, "old-token", issued.ExpiresAt)
	assert.ErrorIs(t, err, ErrRecordExpired)

	record, err := repo.FindLatest(t.Context(), owner, entity.SchoolEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, entity.VerificationPending, record.Status)
	assert.Equal(t, entity.VerificationExpired, record.EffectiveStatus(issued.ExpiresAt))
	assert.False(t, record.Used)
}

func TestVerificationRecordRepository_RedeemWrongOwnerOrType(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)
	school := seedSchoolForTest(t, db, "C006")
	other := seedSchoolForTest(t, db, "C007")
	owner := school.Principal().Ref()
	issueForTest(t, repo, owner, "scoped-token", testNow)

	err := repo.Redeem(t.Context(), other.Principal().Ref(), entity.SchoolEmailVerification, "scoped-token", testNow)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	err = repo.Redeem(t.Context(), owner, entity.SchoolPasswordReset, "scoped-token", testNow)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	err = repo.Redeem(t.Context(), owner, entity.SchoolEmailVerification, "unknown", testNow)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestVerificationRecordRepository_Revoke(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)
	admin := seedAdminForTest(t, db, "admin-hash-2")
	owner := admin.Principal().Ref()
	issueForTest(t, repo, owner, "revoke-me", testNow)

	count, err := repo.Revoke(t.Context(), "not-issued", "operator request")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.Revoke(t.Context(), "revoke-me", "operator request")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.Revoke(t.Context(), "revoke-me", "again")
	require.NoError(t, err)
	assert.Zero(t, count)

	err = repo.Redeem(t.Context(), owner, entity.AdminEmailVerification, "revoke-me", testNow)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	record, err := repo.FindLatest(t.Context(), owner, entity.AdminEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, entity.VerificationRevoked, record.Status)
	require.NotNil(t, record.FailureReason)
	assert.Equal(t, "operator request", *record.FailureReason)
}

func TestVerificationRecordRepository_FindLatestMissing(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)
	admin := seedAdminForTest(t, db, "admin-hash-3")

	record, err := repo.FindLatest(t.Context(), admin.Principal().Ref(), entity.AdminEmailVerification)
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewVerificationRecordRepository(db)
	principals := NewPrincipalRepository(db)
	admin := seedAdminForTest(t, db, "admin-hash-4")
	owner := admin.Principal().Ref()
	issueForTest(t, repo, owner, "tx-token", testNow)

	err := NewTransactor(db).WithinTransaction(t.Context(), func(ctx context.Context) error {
		if err := repo.Redeem(ctx, owner, entity.AdminEmailVerification, "tx-token", testNow); err != nil {
			return err
		}
		return principals.MarkEmailVerified(ctx, entity.OwnerRef{ID: owner.ID, Kind: entity.OwnerSchool}, testNow)
	})
	require.ErrorIs(t, err, ErrPrincipalNotFound)

	record, err := repo.FindLatest(t.Context(), owner, entity.AdminEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, entity.VerificationPending, record.Status)
}

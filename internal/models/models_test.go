package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierFeatures_Layered(t *testing.T) {
	free := TierFeatures(SubscriptionFree)
	basic := TierFeatures(SubscriptionBasic)
	premium := TierFeatures(SubscriptionPremium)
	pro := TierFeatures(SubscriptionPro)

	for f := range free {
		assert.True(t, basic.Has(f), "basic must contain %s", f)
	}
	for f := range basic {
		assert.True(t, premium.Has(f), "premium must contain %s", f)
	}
	for f := range premium {
		assert.True(t, pro.Has(f), "pro must contain %s", f)
	}
	assert.False(t, free.Has(FeatureAdvancedAnalytics))
	assert.True(t, premium.Has(FeatureAdvancedAnalytics))
	assert.Equal(t, free, TierFeatures(SubscriptionType("platinum")))
}

func TestEnterpriseFeatures_Superset(t *testing.T) {
	ent := EnterpriseFeatures()
	for f := range TierFeatures(SubscriptionPro) {
		assert.True(t, ent.Has(f))
	}
	assert.True(t, ent.Has(FeatureGymIntegration))
}

func TestFeatureSet_Intersect(t *testing.T) {
	a := NewFeatureSet(FeatureWorkoutTracking, FeatureAdvancedAnalytics)
	b := NewFeatureSet(FeatureWorkoutTracking)
	assert.Equal(t, []Feature{FeatureWorkoutTracking}, a.Intersect(b).Slice())
}

func TestSubscriptionStatus_IsValid(t *testing.T) {
	tests := []struct {
		status SubscriptionStatus
		want   bool
	}{
		{StatusActive, true},
		{StatusPendingRenewal, true},
		{StatusInGracePeriod, true},
		{StatusInactive, false},
		{StatusExpired, false},
		{StatusCancelled, false},
		{SubscriptionStatus("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsValid())
		})
	}
}

func TestLimit(t *testing.T) {
	l := LimitOf(2)
	assert.True(t, l.Allows(1))
	assert.False(t, l.Allows(2))
	assert.True(t, Unlimited().Allows(1<<40))
	assert.False(t, Limit{}.Allows(0))

	data, err := json.Marshal(PlanLimits{MaxWorkoutsPerMonth: LimitOf(10), MaxAIQueriesPerMonth: Unlimited()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"max_workouts_per_month":10,"max_ai_queries_per_month":null}`, string(data))

	var back PlanLimits
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.MaxAIQueriesPerMonth.IsUnlimited())
	n, bounded := back.MaxWorkoutsPerMonth.Max()
	assert.True(t, bounded)
	assert.Equal(t, int64(10), n)
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "x.com", EmailDomain("a@X.com"))
	assert.Equal(t, "", EmailDomain("broken"))
	assert.Equal(t, "", EmailDomain("broken@"))
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@x.COM "))
}

func TestUser_CheckInvariants(t *testing.T) {
	gym := "gym-1"
	u := User{GymMembershipID: &gym}
	assert.ErrorIs(t, u.CheckInvariants(), ErrGymMemberWithoutTenant)
	tenant := "t-1"
	u.TenantID = &tenant
	assert.NoError(t, u.CheckInvariants())
}

func TestDispatchError_Is(t *testing.T) {
	err := NewDispatchError("mail.Send", assert.AnError)
	assert.ErrorIs(t, err, ErrDispatchFailure)
	assert.ErrorIs(t, err, assert.AnError)
}

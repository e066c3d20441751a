package models

import (
	"slices"
)

// Feature функция продукта, доступ к которой определяется подпиской или арендатором.
type Feature string

const (
	FeatureWorkoutTracking     Feature = "workoutTracking"
	FeatureBasicAnalytics      Feature = "basicAnalytics"
	FeatureCustomWorkoutPlans  Feature = "customWorkoutPlans"
	FeatureNutritionTracking   Feature = "nutritionTracking"
	FeatureProgressPhotos      Feature = "progressPhotos"
	FeatureAdvancedAnalytics   Feature = "advancedAnalytics"
	FeatureUnlimitedAICoaching Feature = "unlimitedAICoaching"
	FeatureExportData          Feature = "exportData"
	FeaturePrioritySupport     Feature = "prioritySupport"
	FeatureTrainerChat         Feature = "personalTrainerChat"
	FeatureWearableSync        Feature = "wearableSync"
	FeatureTeamManagement      Feature = "teamManagement"
	FeatureGymIntegration      Feature = "gymIntegration"
	FeatureClassBooking        Feature = "classBooking"
)

// tierAdds функции, которые добавляет каждый уровень поверх предыдущего.
var tierAdds = map[SubscriptionType][]Feature{
	SubscriptionFree: {
		FeatureWorkoutTracking,
		FeatureBasicAnalytics,
	},
	SubscriptionBasic: {
		FeatureCustomWorkoutPlans,
		FeatureNutritionTracking,
		FeatureProgressPhotos,
	},
	SubscriptionPremium: {
		FeatureAdvancedAnalytics,
		FeatureUnlimitedAICoaching,
		FeatureExportData,
	},
	SubscriptionPro: {
		FeaturePrioritySupport,
		FeatureTrainerChat,
		FeatureWearableSync,
	},
}

var enterpriseAdds = []Feature{
	FeatureTeamManagement,
	FeatureGymIntegration,
	FeatureClassBooking,
}

var tierOrder = []SubscriptionType{
	SubscriptionFree,
	SubscriptionBasic,
	SubscriptionPremium,
	SubscriptionPro,
}

// FeatureSet множество функций.
type FeatureSet map[Feature]struct{}

// NewFeatureSet собирает множество из списка.
func NewFeatureSet(features ...Feature) FeatureSet {
	s := make(FeatureSet, len(features))
	for _, f := range features {
		s[f] = struct{}{}
	}
	return s
}

// Has проверяет принадлежность функции множеству.
func (s FeatureSet) Has(f Feature) bool {
	_, ok := s[f]
	return ok
}

// Intersect возвращает новое множество функций, присутствующих в обоих.
func (s FeatureSet) Intersect(other FeatureSet) FeatureSet {
	out := make(FeatureSet)
	for f := range s {
		if other.Has(f) {
			out[f] = struct{}{}
		}
	}
	return out
}

// Slice возвращает отсортированный список функций.
func (s FeatureSet) Slice() []Feature {
	out := make([]Feature, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// TierFeatures возвращает накопленный набор функций уровня:
// pro ⊇ premium ⊇ basic ⊇ free. Неизвестный уровень получает набор free.
func TierFeatures(t SubscriptionType) FeatureSet {
	s := make(FeatureSet)
	rank := t.Rank()
	for _, tier := range tierOrder {
		if tier.Rank() > rank {
			break
		}
		for _, f := range tierAdds[tier] {
			s[f] = struct{}{}
		}
	}
	return s
}

// EnterpriseFeatures возвращает полный корпоративный набор, доступный членам зала.
func EnterpriseFeatures() FeatureSet {
	s := TierFeatures(SubscriptionPro)
	for _, f := range enterpriseAdds {
		s[f] = struct{}{}
	}
	return s
}

// IsSubscriptionGated сообщает, что функция требует действующей платной подписки,
// то есть не входит в бесплатный уровень.
func IsSubscriptionGated(f Feature) bool {
	return !TierFeatures(SubscriptionFree).Has(f)
}

// Known проверяет, что функция существует в каталоге.
func (f Feature) Known() bool {
	return EnterpriseFeatures().Has(f)
}

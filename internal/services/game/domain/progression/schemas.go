package progression

import (
	"fmt"

	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned/codec"
)

// RegisterSchemas adds the progression object types to reg.
func RegisterSchemas(reg *codec.Registry) error {
	if err := codec.Register(reg, TypeProfile, DefaultProfile); err != nil {
		return err
	}
	if err := codec.Register(reg, TypeJournal, DefaultJournal); err != nil {
		return err
	}
	if err := codec.RegisterPolymorphic(reg, TypeReward,
		func() RewardToken { return CurrencyReward{} },
		codec.Variants[RewardToken]{
			Field: rewardField,
			Decoders: map[string]codec.Decoder[RewardToken]{
				RewardKindCurrency: codec.Variant[RewardToken, CurrencyReward](),
				RewardKindItem:     codec.Variant[RewardToken, ItemReward](),
				RewardKindCosmetic: codec.Variant[RewardToken, CosmeticReward](),
			},
		},
	); err != nil {
		return err
	}
	return codec.RegisterPolymorphic(reg, TypeActivity,
		func() ActivityEntry { return MatchFinishedActivity{} },
		codec.Variants[ActivityEntry]{
			Field: activityField,
			Decoders: map[string]codec.Decoder[ActivityEntry]{
				EventLevelUp:       codec.Variant[ActivityEntry, LevelUpActivity](),
				EventRewardClaimed: codec.Variant[ActivityEntry, RewardClaimedActivity](),
				EventMatchFinished: codec.Variant[ActivityEntry, MatchFinishedActivity](),
			},
		},
	)
}

// NewRegistry returns a registry holding the progression schemas.
func NewRegistry() (*codec.Registry, error) {
	reg := codec.NewRegistry()
	if err := RegisterSchemas(reg); err != nil {
		return nil, fmt.Errorf("register progression schemas: %w", err)
	}
	return reg, nil
}

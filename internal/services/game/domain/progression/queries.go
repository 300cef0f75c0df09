package progression

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/gamestate/internal/platform/errors"
	"github.com/louisbranch/gamestate/internal/platform/id"
	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned"
)

const (
	extraPlayerID     = "player_id"
	extraGained       = "gained"
	extraLevelsGained = "levels_gained"
	extraActivityID   = "activity_id"
	extraRewardID     = "reward_id"
)

// LevelUpQuery awards experience to a player. The profile is read first and a
// continuation decides whether a level threshold was crossed. When it was, an
// unclaimed currency reward worth CoinsPerLevel per level is minted, a
// level_up activity entry is written and the journal is bumped, all in the
// same transaction.
//
// The final Results hold the written profile and, when levels were gained,
// the reward and activity entry. Use LevelUpOutcomeFrom to read them.
func LevelUpQuery(playerID string, gained int) (*versioned.Query, error) {
	playerID, err := validatePlayerID(playerID)
	if err != nil {
		return nil, err
	}
	if gained < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidGain, gained)
	}
	return levelUp(versioned.NewQuery(), playerID, gained), nil
}

func levelUp(q *versioned.Query, playerID string, gained int) *versioned.Query {
	return q.
		Get(TypeProfile, playerID).
		Extra(extraPlayerID, playerID).
		Extra(extraGained, gained).
		Then(applyExperience, true)
}

func applyExperience(res *versioned.Results) (*versioned.Query, error) {
	playerID, _ := versioned.Extra[string](res, extraPlayerID)
	gained, _ := versioned.Extra[int](res, extraGained)
	profile, _, err := versioned.Read[Profile](res, TypeProfile, playerID)
	if err != nil {
		return nil, err
	}

	next, levels := profile.Gain(gained)
	q := versioned.NewQuery().
		Update(TypeProfile, playerID, next).
		Get(TypeProfile, playerID).
		Extra(extraPlayerID, playerID).
		Extra(extraLevelsGained, levels)
	if levels == 0 {
		return q, nil
	}

	activityID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("activity id: %w", err)
	}
	rewardID := levelRewardID(playerID, next.Level)
	return q.
		Update(TypeReward, rewardID, CurrencyReward{Amount: levels * CoinsPerLevel}).
		Update(TypeActivity, activityID, LevelUpActivity{PlayerID: playerID, From: profile.Level, To: next.Level}).
		Bump(TypeJournal, playerID).
		Get(TypeReward, rewardID).
		Get(TypeActivity, activityID).
		Extra(extraRewardID, rewardID).
		Extra(extraActivityID, activityID), nil
}

// LevelUpOutcome is the committed effect of a LevelUpQuery.
type LevelUpOutcome struct {
	Profile      Profile
	Version      int64
	LevelsGained int
	// RewardID and ActivityID are empty when no level was gained.
	RewardID   string
	ActivityID string
	Updates    map[string]int64
}

// LevelUpOutcomeFrom reads the outcome of an executed LevelUpQuery.
func LevelUpOutcomeFrom(res *versioned.Results) (LevelUpOutcome, error) {
	playerID, ok := versioned.Extra[string](res, extraPlayerID)
	if !ok {
		return LevelUpOutcome{}, apperrors.New(apperrors.CodeStoreInvalidQuery, "results do not come from a level-up query")
	}
	profile, version, err := versioned.Read[Profile](res, TypeProfile, playerID)
	if err != nil {
		return LevelUpOutcome{}, err
	}
	levels, _ := versioned.Extra[int](res, extraLevelsGained)
	rewardID, _ := versioned.Extra[string](res, extraRewardID)
	activityID, _ := versioned.Extra[string](res, extraActivityID)
	return LevelUpOutcome{
		Profile:      profile,
		Version:      version,
		LevelsGained: levels,
		RewardID:     rewardID,
		ActivityID:   activityID,
		Updates:      res.Updates(),
	}, nil
}

// FinishMatchQuery records a finished match in the player's activity log and
// then awards the match experience through the level-up flow.
func FinishMatchQuery(playerID, matchID string, won bool, experience int) (*versioned.Query, error) {
	playerID, err := validatePlayerID(playerID)
	if err != nil {
		return nil, err
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return nil, apperrors.New(apperrors.CodeStoreInvalidQuery, "match id is required")
	}
	if experience < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidGain, experience)
	}
	activityID := matchActivityID(playerID, matchID)
	q := versioned.NewQuery().
		Update(TypeActivity, activityID, MatchFinishedActivity{
			PlayerID:   playerID,
			MatchID:    matchID,
			Won:        won,
			Experience: experience,
		}).
		Bump(TypeJournal, playerID).
		Then(func(*versioned.Results) (*versioned.Query, error) {
			return levelUp(versioned.NewQuery(), playerID, experience), nil
		}, true)
	return q, nil
}

// ClaimRewardQuery claims a reward token on behalf of a player. Currency
// rewards are credited to the profile; other kinds are only marked claimed.
// Claiming a reward that was never minted or was already claimed fails and
// leaves every object untouched.
func ClaimRewardQuery(playerID, rewardID string) (*versioned.Query, error) {
	playerID, err := validatePlayerID(playerID)
	if err != nil {
		return nil, err
	}
	rewardID = strings.TrimSpace(rewardID)
	if rewardID == "" {
		return nil, apperrors.New(apperrors.CodeStoreInvalidQuery, "reward id is required")
	}
	q := versioned.NewQuery().
		Get(TypeReward, rewardID).
		Get(TypeProfile, playerID).
		Then(func(res *versioned.Results) (*versioned.Query, error) {
			return claimReward(res, playerID, rewardID)
		}, true)
	return q, nil
}

func claimReward(res *versioned.Results, playerID, rewardID string) (*versioned.Query, error) {
	token, version, err := versioned.Read[RewardToken](res, TypeReward, rewardID)
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{"player_id": playerID, "reward_id": rewardID}
	if version == versioned.DefaultVersion {
		return nil, apperrors.WrapWithMetadata(ErrRewardNotFound.Code,
			"reward was never minted", metadata, nil)
	}
	if token.IsClaimed() {
		return nil, apperrors.WrapWithMetadata(ErrRewardClaimed.Code,
			"reward already claimed", metadata, nil)
	}
	profile, _, err := versioned.Read[Profile](res, TypeProfile, playerID)
	if err != nil {
		return nil, err
	}
	if currency, ok := token.(CurrencyReward); ok {
		profile.Coins += currency.Amount
	}
	activityID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("activity id: %w", err)
	}
	return versioned.NewQuery().
		Update(TypeReward, rewardID, token.Claimed()).
		Update(TypeProfile, playerID, profile).
		Update(TypeActivity, activityID, RewardClaimedActivity{
			PlayerID: playerID,
			RewardID: rewardID,
			Kind:     token.Tag(),
		}).
		Bump(TypeJournal, playerID).
		Get(TypeProfile, playerID).
		Get(TypeReward, rewardID).
		Extra(extraActivityID, activityID), nil
}

// GrantRewardQuery mints an unclaimed reward token.
func GrantRewardQuery(rewardID string, token RewardToken) (*versioned.Query, error) {
	rewardID = strings.TrimSpace(rewardID)
	if rewardID == "" {
		return nil, apperrors.New(apperrors.CodeStoreInvalidQuery, "reward id is required")
	}
	if token == nil {
		return nil, apperrors.New(apperrors.CodeStoreInvalidQuery, "reward token is required")
	}
	if token.IsClaimed() {
		return nil, fmt.Errorf("grant %s: %w", rewardID, ErrRewardClaimed)
	}
	return versioned.NewQuery().Update(TypeReward, rewardID, token), nil
}

// ProfileQuery reads a player's profile and journal without taking the write
// lock.
func ProfileQuery(playerID string) (*versioned.Query, error) {
	playerID, err := validatePlayerID(playerID)
	if err != nil {
		return nil, err
	}
	return versioned.NewReadQuery().
		Get(TypeProfile, playerID).
		Get(TypeJournal, playerID), nil
}

func validatePlayerID(playerID string) (string, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return "", ErrInvalidPlayerID
	}
	return playerID, nil
}

func levelRewardID(playerID string, level int) string {
	return fmt.Sprintf("%s:level:%d", playerID, level)
}

func matchActivityID(playerID, matchID string) string {
	return fmt.Sprintf("%s:match:%s", playerID, matchID)
}

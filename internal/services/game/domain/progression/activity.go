package progression

// TypeActivity is the object type of activity log entries.
const TypeActivity = "activity"

// activityField is the discriminator of stored activity entries.
const activityField = "event"

// Activity events.
const (
	EventLevelUp       = "level_up"
	EventRewardClaimed = "reward_claimed"
	EventMatchFinished = "match_finished"
)

// ActivityEntry is one line of a player's activity log.
type ActivityEntry interface {
	Tag() string
	Player() string
}

// LevelUpActivity records levels gained at once.
type LevelUpActivity struct {
	PlayerID string `json:"player_id"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

func (LevelUpActivity) Tag() string      { return EventLevelUp }
func (a LevelUpActivity) Player() string { return a.PlayerID }

// RewardClaimedActivity records a claimed reward token.
type RewardClaimedActivity struct {
	PlayerID string `json:"player_id"`
	RewardID string `json:"reward_id"`
	Kind     string `json:"reward_kind"`
}

func (RewardClaimedActivity) Tag() string      { return EventRewardClaimed }
func (a RewardClaimedActivity) Player() string { return a.PlayerID }

// MatchFinishedActivity records the result of a match.
type MatchFinishedActivity struct {
	PlayerID   string `json:"player_id"`
	MatchID    string `json:"match_id"`
	Won        bool   `json:"won"`
	Experience int    `json:"experience"`
}

func (MatchFinishedActivity) Tag() string      { return EventMatchFinished }
func (a MatchFinishedActivity) Player() string { return a.PlayerID }

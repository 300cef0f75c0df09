package progression

// TypeReward is the object type of reward tokens, keyed by reward id.
const TypeReward = "reward"

// rewardField is the discriminator of stored reward tokens.
const rewardField = "kind"

// Reward kinds.
const (
	RewardKindCurrency = "currency"
	RewardKindItem     = "item"
	RewardKindCosmetic = "cosmetic"
)

// RewardToken is a grant a player can claim once. Its concrete shape depends
// on its kind.
type RewardToken interface {
	Tag() string
	IsClaimed() bool
	// Claimed returns a copy of the token marked as claimed.
	Claimed() RewardToken
}

// CurrencyReward credits coins to the player's profile.
type CurrencyReward struct {
	Amount int  `json:"amount"`
	Claim  bool `json:"claimed"`
}

func (CurrencyReward) Tag() string       { return RewardKindCurrency }
func (r CurrencyReward) IsClaimed() bool { return r.Claim }
func (r CurrencyReward) Claimed() RewardToken {
	r.Claim = true
	return r
}

// ItemReward grants inventory items.
type ItemReward struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Claim    bool   `json:"claimed"`
}

func (ItemReward) Tag() string       { return RewardKindItem }
func (r ItemReward) IsClaimed() bool { return r.Claim }
func (r ItemReward) Claimed() RewardToken {
	r.Claim = true
	return r
}

// CosmeticReward unlocks a cosmetic skin.
type CosmeticReward struct {
	SkinID string `json:"skin_id"`
	Claim  bool   `json:"claimed"`
}

func (CosmeticReward) Tag() string       { return RewardKindCosmetic }
func (r CosmeticReward) IsClaimed() bool { return r.Claim }
func (r CosmeticReward) Claimed() RewardToken {
	r.Claim = true
	return r
}

package progression

// TypeProfile is the object type of player profiles, keyed by player id.
const TypeProfile = "profile"

// LevelThreshold is the experience needed to gain one level.
const LevelThreshold = 500

// CoinsPerLevel is the currency credited for each level gained.
const CoinsPerLevel = 100

// Profile is a player's progression state.
type Profile struct {
	Level      int `json:"level"`
	Experience int `json:"experience"`
	Coins      int `json:"coins"`
}

// DefaultProfile is the profile of a player that has never been persisted.
func DefaultProfile() Profile {
	return Profile{Level: 1}
}

// Gain adds experience and converts every full LevelThreshold into a level.
// It returns the updated profile and the number of levels gained.
func (p Profile) Gain(experience int) (Profile, int) {
	p.Experience += experience
	levels := 0
	for p.Experience >= LevelThreshold {
		p.Experience -= LevelThreshold
		p.Level++
		levels++
	}
	return p, levels
}

package progression

import apperrors "github.com/louisbranch/gamestate/internal/platform/errors"

var (
	// ErrInvalidPlayerID is returned when a query is built without a player.
	ErrInvalidPlayerID = apperrors.New(apperrors.CodeProgressionInvalidPlayerID, "player id is required")
	// ErrInvalidGain is returned for negative experience awards.
	ErrInvalidGain = apperrors.New(apperrors.CodeProgressionInvalidGain, "experience gain must not be negative")
	// ErrRewardNotFound is returned when claiming a reward that was never minted.
	ErrRewardNotFound = apperrors.New(apperrors.CodeProgressionRewardNotFound, "reward not found")
	// ErrRewardClaimed is returned when claiming a reward twice.
	ErrRewardClaimed = apperrors.New(apperrors.CodeProgressionRewardClaimed, "reward already claimed")
)

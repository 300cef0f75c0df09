package progression

// TypeJournal is the object type of per-player journals. Its version is
// bumped whenever the activity log of the player grows, so clients watching
// the updates map know to refetch the log.
const TypeJournal = "journal"

// Journal summarizes a player's activity log.
type Journal struct {
	Title string `json:"title"`
}

// DefaultJournal is the journal of a player that has never been persisted.
func DefaultJournal() Journal {
	return Journal{Title: "Adventure log"}
}

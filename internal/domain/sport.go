package domain

// Source identifies which upstream bookmaker platform a record came from.
type Source string

const (
	SourceReference Source = "reference"
	SourceSportybet Source = "sportybet"
	SourceBet9ja    Source = "bet9ja"
)

// BookmakerRole distinguishes the reference bookmaker from competitors.
type BookmakerRole string

const (
	RoleReference  BookmakerRole = "reference"
	RoleCompetitor BookmakerRole = "competitor"
)

// Sport is the top level of the Sport -> Tournament -> Event hierarchy.
type Sport struct {
	ID   int64  `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Tournament belongs to a Sport.
type Tournament struct {
	ID      int64  `json:"id"`
	SportID int64  `json:"sport_id"`
	Key     string `json:"key"`
	Name    string `json:"name"`
}

// Bookmaker is one of the three tracked platforms. Exactly one has RoleReference.
type Bookmaker struct {
	ID          int64         `json:"id"`
	Slug        string        `json:"slug"`
	DisplayName string        `json:"display_name"`
	Role        BookmakerRole `json:"role"`
}

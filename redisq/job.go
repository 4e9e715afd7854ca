package redisq

import "encoding/json"

const (
	ScrapeQueue = "queue:scrape"

	// IndexQueue is drained by the external search indexer, never by this
	// worker.
	IndexQueue = "queue:index"
)

const (
	JobScrapeAccount = "scrape_account"
	JobScrapeAvatar  = "scrape_avatar"
	JobIndexProfile  = "index_profile"
)

// Job is the queue envelope. Payload stays raw until the job type picks
// its schema.
type Job struct {
	Id      string          `json:"id"`
	Type    string          `json:"type"`
	Attempt int             `json:"attempt,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type ScrapeAccountPayload struct {
	Site string `json:"site"`
	Name string `json:"name"`
}

type ScrapeAvatarPayload struct {
	ProfileId int64  `json:"profile_id"`
	Url       string `json:"url"`
}

type IndexProfilePayload struct {
	ProfileId int64 `json:"profile_id"`
}

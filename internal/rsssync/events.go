package rsssync

import "github.com/slipstream/gamearr/internal/decisioning"

// Websocket messages emitted during a sync cycle. The completed message
// carries the cycle's SyncStatus.
const (
	EventStarted   = "rss-sync:started"
	EventProgress  = "rss-sync:progress"
	EventCompleted = "rss-sync:completed"
	EventFailed    = "rss-sync:failed"
)

type syncStarted struct {
	Indexers int `json:"indexers"`
}

// indexerProgress reports one indexer's share of the cycle. Error is set
// when the fetch failed and the indexer contributed nothing.
type indexerProgress struct {
	IndexerID int64  `json:"indexerId"`
	Indexer   string `json:"indexer"`
	Fresh     int    `json:"fresh"`
	Matched   int    `json:"matched"`
	Accepted  int    `json:"accepted"`
	Error     string `json:"error,omitempty"`
}

func progressFor(res indexerResult) indexerProgress {
	p := indexerProgress{
		IndexerID: res.adapter.ID(),
		Indexer:   res.adapter.Name(),
		Fresh:     res.releases,
	}
	if res.err != nil {
		p.Error = res.err.Error()
		return p
	}
	for _, d := range res.decisions {
		if d.Candidate.Match != nil {
			p.Matched++
		}
		if d.Accepted() {
			p.Accepted++
		}
	}
	return p
}

type syncFailed struct {
	Error string `json:"error"`
}

func countMatched(decisions []decisioning.Decision) int {
	n := 0
	for _, d := range decisions {
		if d.Candidate.Match != nil {
			n++
		}
	}
	return n
}

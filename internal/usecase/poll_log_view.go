package usecase

import (
	"html"
	"sort"
	"strings"

	"github.com/khrabrovart/telebot/internal/domain/model"
)

const recordTimeLayout = "02.01.2006 15:04:05"

// VoterGroup holds one voter's records in chronological order.
type VoterGroup struct {
	VoterID int64
	Records []model.PollEventRecord
}

// GroupByVoter groups records by voter, ordering voters by first appearance.
func GroupByVoter(records []model.PollEventRecord) []VoterGroup {
	index := map[int64]int{}
	var groups []VoterGroup
	for _, rec := range records {
		i, ok := index[rec.VoterID]
		if !ok {
			i = len(groups)
			index[rec.VoterID] = i
			groups = append(groups, VoterGroup{VoterID: rec.VoterID})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	for i := range groups {
		recs := groups[i].Records
		sort.SliceStable(recs, func(a, b int) bool { return recs[a].Timestamp.Before(recs[b].Timestamp) })
	}
	return groups
}

// ApplyOutputPolicy filters voter groups. Groups left empty are dropped.
func ApplyOutputPolicy(groups []VoterGroup, policy model.OutputPolicy) []VoterGroup {
	if policy.Type != model.OutputOnlyWhenTargetOptionRevoked {
		return groups
	}
	out := make([]VoterGroup, 0, len(groups))
	for _, g := range groups {
		if kept := afterTargetRevoked(g.Records, policy.TargetOptionID); len(kept) > 0 {
			out = append(out, VoterGroup{VoterID: g.VoterID, Records: kept})
		}
	}
	return out
}

// afterTargetRevoked keeps the record that moved the voter away from target
// (strictly later than the last target selection) and everything after it.
func afterTargetRevoked(records []model.PollEventRecord, target int) []model.PollEventRecord {
	var (
		pending *model.PollEventRecord
		kept    []model.PollEventRecord
	)
	for i := range records {
		rec := records[i]
		if kept != nil {
			kept = append(kept, rec)
			continue
		}
		if rec.Selects(target) {
			pending = &records[i]
			continue
		}
		if pending != nil && rec.Timestamp.After(pending.Timestamp) {
			kept = []model.PollEventRecord{rec}
		}
	}
	return kept
}

func policyDescription(policy model.OutputPolicy) string {
	if policy.Type == model.OutputOnlyWhenTargetOptionRevoked {
		return "Only actions after a vote moved away from the target option are shown"
	}
	return "All actions are shown"
}

// RenderLog renders the display text of a poll log under policy.
func RenderLog(l *model.PollEventLog, policy model.OutputPolicy) string {
	loc := l.Location()
	groups := ApplyOutputPolicy(GroupByVoter(l.Records), policy)

	blocks := make([]string, 0, len(groups))
	for _, g := range groups {
		var b strings.Builder
		b.WriteString("<b>" + html.EscapeString(g.Records[0].DisplayName()) + "</b>")
		for _, rec := range g.Records {
			b.WriteString("\n")
			b.WriteString(rec.Timestamp.In(loc).Format(recordTimeLayout))
			b.WriteString(" → ")
			if rec.Revoked() || rec.OptionText == nil {
				b.WriteString("<b>Vote revoked</b>")
			} else {
				b.WriteString(html.EscapeString(*rec.OptionText))
			}
		}
		blocks = append(blocks, b.String())
	}

	body := strings.Join(blocks, "\n\n")
	if body == "" {
		body = "<i>Poll actions will appear here</i>"
	}
	return "<b>Poll event log</b>\n" + policyDescription(policy) + "\n\n" + html.EscapeString(l.Text) + "\n\n" + body
}

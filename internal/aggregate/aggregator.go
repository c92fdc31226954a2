// Package aggregate folds per-message annotations into one
// ConversationAnalytics. The fold is single-pass and associative: counts and
// sums accumulate in any order, and only the final bucketing and top-N
// selection need the combined input. Nothing here reads the wall clock, so
// identical input and configuration produce identical output.
package aggregate

import (
	"sort"
	"time"

	"github.com/chatlens/chatlens/internal/chat"
)

const (
	topConversationKeywords = 50
	topEntitiesPerType      = 20
	topParticipantKeywords  = 10
	peakHourCount           = 3
	peakDayCount            = 2
	activeHourCount         = 3
)

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

type participantAcc struct {
	stats     *chat.ParticipantStats
	length    int
	sentiment sentimentAcc
	keywords  map[string]int
	hours     [24]int
	responses []float64
}

type sentimentAcc struct {
	pos, neg, neu, comp float64
	n                   int
}

func (s *sentimentAcc) add(sc chat.SentimentScore) {
	s.pos += sc.Positive
	s.neg += sc.Negative
	s.neu += sc.Neutral
	s.comp += sc.Compound
	s.n++
}

func (s *sentimentAcc) mean() chat.SentimentScore {
	if s.n == 0 {
		return chat.SentimentScore{Neutral: 1, Compound: 0.5}
	}
	n := float64(s.n)
	return chat.SentimentScore{
		Positive: s.pos / n,
		Negative: s.neg / n,
		Neutral:  s.neu / n,
		Compound: s.comp / n,
	}
}

// Build folds messages, their annotations and the participant table into the
// terminal analytics value. Messages must be in source order; annotations are
// re-associated by message id, so batch completion order never matters.
// Timestamps are bucketed in the single reference timezone the parser
// produced (UTC); no per-message timezone normalization is attempted.
func Build(msgs []chat.Message, anns map[int64]chat.Annotation, participants map[string]*chat.Participant) *chat.ConversationAnalytics {
	a := &chat.ConversationAnalytics{
		TotalMessages:     len(msgs),
		TotalParticipants: len(participants),
		Entities:          make(map[string][]chat.EntityCount),
		Languages:         make(map[string]int),
		MediaCounts:       make(map[string]int),
		Participants:      make(map[string]*chat.ParticipantStats),
	}
	a.Timeline.ByDate = make(map[string]int)
	if len(msgs) == 0 {
		return a
	}

	accs := make(map[string]*participantAcc, len(participants))
	for key, p := range participants {
		acc := &participantAcc{
			stats: &chat.ParticipantStats{
				Key:         key,
				DisplayName: p.DisplayName,
			},
			keywords: make(map[string]int),
		}
		accs[key] = acc
		a.Participants[key] = acc.stats
	}

	var overall sentimentAcc
	byDate := make(map[string]*sentimentAcc)
	byDateCount := make(map[string]int)
	keywordCounts := make(map[string]int)
	entityCounts := make(map[string]map[string]int)

	start, end := msgs[0].Timestamp, msgs[0].Timestamp
	var prev *chat.Message
	byID := make(map[int64]*chat.Message, len(msgs))

	for i := range msgs {
		m := &msgs[i]
		byID[m.ID] = m

		if m.Timestamp.Before(start) {
			start = m.Timestamp
		}
		if m.Timestamp.After(end) {
			end = m.Timestamp
		}

		hour := m.Timestamp.Hour()
		a.Timeline.ByHour[hour]++
		a.Timeline.ByWeekday[int(m.Timestamp.Weekday())]++
		date := m.Timestamp.Format("2006-01-02")
		a.Timeline.ByDate[date]++

		if isMedia(m.Type) {
			a.MediaCounts[string(m.Type)]++
		}

		ann, hasAnn := anns[m.ID]
		if hasAnn {
			overall.add(ann.Sentiment)
			acc, ok := byDate[date]
			if !ok {
				acc = &sentimentAcc{}
				byDate[date] = acc
			}
			acc.add(ann.Sentiment)
			byDateCount[date]++

			if ann.Language != "" {
				a.Languages[ann.Language]++
			}
			for _, kw := range ann.Keywords {
				keywordCounts[kw.Term]++
			}
			for _, e := range ann.Entities {
				if entityCounts[e.Type] == nil {
					entityCounts[e.Type] = make(map[string]int)
				}
				entityCounts[e.Type][e.Text]++
			}
		}

		if acc, ok := accs[m.SenderKey]; ok {
			acc.stats.MessageCount++
			acc.length += len([]rune(m.Content))
			acc.hours[hour]++
			if hasAnn {
				acc.sentiment.add(ann.Sentiment)
				for _, kw := range ann.Keywords {
					acc.keywords[kw.Term]++
				}
			}
			foldResponseTime(acc, m, prev, byID)
		}
		prev = m
	}

	a.DateRange = chat.DateRange{Start: start, End: end}
	days := end.Truncate(24*time.Hour).Sub(start.Truncate(24*time.Hour)).Hours()/24 + 1
	a.AvgMessagesPerDay = float64(len(msgs)) / days

	a.Sentiment = overall.mean()
	a.SentimentTimeline = sentimentTimeline(byDate, byDateCount)
	a.Keywords = topKeywordCounts(keywordCounts, len(msgs), topConversationKeywords)
	for typ, counts := range entityCounts {
		a.Entities[typ] = topEntityCounts(counts, topEntitiesPerType)
	}
	a.Timeline.PeakHours = peakHours(a.Timeline.ByHour)
	a.Timeline.PeakDays = peakDays(a.Timeline.ByWeekday)

	for _, acc := range accs {
		finishParticipant(acc, len(msgs))
	}
	return a
}

// foldResponseTime records the delta to the message this one answers: an
// explicit reply target, or the immediately preceding message when it came
// from a different participant. Messages with no identifiable prior turn are
// excluded, not treated as zero.
func foldResponseTime(acc *participantAcc, m, prev *chat.Message, byID map[int64]*chat.Message) {
	var target *chat.Message
	if m.ReplyTo != nil {
		target = byID[*m.ReplyTo]
	} else {
		target = prev
	}
	if target == nil || target.SenderKey == m.SenderKey || target.SenderKey == "system" || m.Type == chat.TypeSystem {
		return
	}
	delta := m.Timestamp.Sub(target.Timestamp).Seconds()
	if delta < 0 {
		return
	}
	acc.responses = append(acc.responses, delta)
}

func finishParticipant(acc *participantAcc, totalMessages int) {
	s := acc.stats
	if s.MessageCount > 0 {
		s.AvgLength = float64(acc.length) / float64(s.MessageCount)
	}
	s.Sentiment = acc.sentiment.mean()
	s.TopKeywords = topKeywordCounts(acc.keywords, totalMessages, topParticipantKeywords)
	s.ActiveHours = topHours(acc.hours, activeHourCount)

	if len(acc.responses) > 0 {
		sum := 0.0
		for _, r := range acc.responses {
			sum += r
		}
		s.ResponseTimeAvg = sum / float64(len(acc.responses))
		sorted := append([]float64(nil), acc.responses...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			s.ResponseTimeMed = sorted[mid]
		} else {
			s.ResponseTimeMed = (sorted[mid-1] + sorted[mid]) / 2
		}
	}
}

func sentimentTimeline(byDate map[string]*sentimentAcc, counts map[string]int) []chat.SentimentPoint {
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]chat.SentimentPoint, 0, len(dates))
	for _, d := range dates {
		points = append(points, chat.SentimentPoint{
			Date:      d,
			Messages:  counts[d],
			Sentiment: byDate[d].mean(),
		})
	}
	return points
}

func topKeywordCounts(counts map[string]int, totalMessages, topN int) []chat.KeywordCount {
	kws := make([]chat.KeywordCount, 0, len(counts))
	for term, count := range counts {
		kws = append(kws, chat.KeywordCount{
			Term:      term,
			Count:     count,
			Frequency: float64(count) / float64(totalMessages),
		})
	}
	sort.Slice(kws, func(i, j int) bool {
		if kws[i].Count != kws[j].Count {
			return kws[i].Count > kws[j].Count
		}
		return kws[i].Term < kws[j].Term
	})
	if len(kws) > topN {
		kws = kws[:topN]
	}
	return kws
}

func topEntityCounts(counts map[string]int, topN int) []chat.EntityCount {
	ents := make([]chat.EntityCount, 0, len(counts))
	for text, count := range counts {
		ents = append(ents, chat.EntityCount{Text: text, Count: count})
	}
	sort.Slice(ents, func(i, j int) bool {
		if ents[i].Count != ents[j].Count {
			return ents[i].Count > ents[j].Count
		}
		return ents[i].Text < ents[j].Text
	})
	if len(ents) > topN {
		ents = ents[:topN]
	}
	return ents
}

func peakHours(byHour [24]int) []int {
	return topHours(byHour, peakHourCount)
}

func topHours(byHour [24]int, n int) []int {
	type hc struct{ hour, count int }
	hcs := make([]hc, 0, 24)
	for h, c := range byHour {
		if c > 0 {
			hcs = append(hcs, hc{h, c})
		}
	}
	sort.Slice(hcs, func(i, j int) bool {
		if hcs[i].count != hcs[j].count {
			return hcs[i].count > hcs[j].count
		}
		return hcs[i].hour < hcs[j].hour
	})
	if len(hcs) > n {
		hcs = hcs[:n]
	}
	hours := make([]int, len(hcs))
	for i, h := range hcs {
		hours[i] = h.hour
	}
	return hours
}

func peakDays(byWeekday [7]int) []string {
	type dc struct {
		day   int
		count int
	}
	dcs := make([]dc, 0, 7)
	for d, c := range byWeekday {
		if c > 0 {
			dcs = append(dcs, dc{d, c})
		}
	}
	sort.Slice(dcs, func(i, j int) bool {
		if dcs[i].count != dcs[j].count {
			return dcs[i].count > dcs[j].count
		}
		return dcs[i].day < dcs[j].day
	})
	if len(dcs) > peakDayCount {
		dcs = dcs[:peakDayCount]
	}
	days := make([]string, len(dcs))
	for i, d := range dcs {
		days[i] = weekdayNames[d.day]
	}
	return days
}

func isMedia(t chat.MessageType) bool {
	switch t {
	case chat.TypeImage, chat.TypeVideo, chat.TypeAudio, chat.TypeDocument, chat.TypeSticker:
		return true
	}
	return false
}

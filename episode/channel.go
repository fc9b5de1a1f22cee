package episode

import (
	"sort"

	"contact-metrics/models"
)

// ChannelVolumes counts the new episodes reaching each channel, largest first,
// with the topReasons most frequent reasons behind them.
func ChannelVolumes(records []models.EventRecord, topReasons int) []models.ChannelVolume {
	volumes := make(map[string]int)
	reasons := make(map[string]map[string]int)
	for _, rec := range records {
		if !rec.IsNewEpisode {
			continue
		}
		volumes[rec.Channel]++
		if reasons[rec.Channel] == nil {
			reasons[rec.Channel] = make(map[string]int)
		}
		reasons[rec.Channel][rec.Reason]++
	}

	out := make([]models.ChannelVolume, 0, len(volumes))
	for channel, n := range volumes {
		top := ranked(reasons[channel])
		if topReasons > 0 && len(top) > topReasons {
			top = top[:topReasons]
		}
		out = append(out, models.ChannelVolume{Channel: channel, NewEpisodes: n, TopReasons: top})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NewEpisodes != out[j].NewEpisodes {
			return out[i].NewEpisodes > out[j].NewEpisodes
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

func ranked(counts map[string]int) []models.RankedCount {
	out := make([]models.RankedCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, models.RankedCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

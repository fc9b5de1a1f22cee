package episode_test

import (
	"testing"

	"contact-metrics/episode"
	"contact-metrics/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelVolumes(t *testing.T) {
	mk := func(channel, reason string, isNew bool) models.EventRecord {
		r := record("R", at(9, 0), reason)
		r.Channel = channel
		r.IsNewEpisode = isNew
		return r
	}
	records := []models.EventRecord{
		mk("Site", "Atraso", true),
		mk("Site", "Atraso", true),
		mk("Site", "Troca", true),
		mk("Site", "Extravio", false),
		mk("Marketplace", "Troca", true),
		mk("Marketplace", "Defeito", true),
		mk("Marketplace", "Atraso", true),
		mk("Telefone", "Atraso", false),
	}

	got := episode.ChannelVolumes(records, 2)
	require.Len(t, got, 2)

	assert.Equal(t, "Marketplace", got[0].Channel)
	assert.Equal(t, 3, got[0].NewEpisodes)
	assert.Equal(t, []models.RankedCount{{Label: "Atraso", Count: 1}, {Label: "Defeito", Count: 1}}, got[0].TopReasons)

	assert.Equal(t, "Site", got[1].Channel)
	assert.Equal(t, 3, got[1].NewEpisodes)
	assert.Equal(t, []models.RankedCount{{Label: "Atraso", Count: 2}, {Label: "Troca", Count: 1}}, got[1].TopReasons)

	assert.Empty(t, episode.ChannelVolumes(nil, 5))
}

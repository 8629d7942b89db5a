package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectBuildersAreGuildScoped(t *testing.T) {
	assert.Equal(t, "guild.a.chat", ChatSubject("a"))
	assert.Equal(t, "guild.a.event", EventSubject("a"))
	assert.Equal(t, "guild.a.conn", ConnSubject("a"))
}

func TestWildcardSubjectsMatchGuildScopedPattern(t *testing.T) {
	assert.Equal(t, "guild.*.chat", AllChatSubject)
	assert.Equal(t, "guild.*.event", AllEventSubject)
	assert.Equal(t, "guild.*.conn", AllConnSubject)
}

func TestConnLifecycleRoundTripsThroughJSON(t *testing.T) {
	ev := ConnLifecycle{GuildID: "a", Kind: "connected", Reason: "spawn"}
	data, err := json.Marshal(ev)
	assert.NoError(t, err)

	var decoded ConnLifecycle
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ev, decoded)
}

package xtopo

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleFromState(t *testing.T) {
	tests := []struct {
		state int
		want  Role
	}{
		{0, RoleStartup},
		{1, RolePrimary},
		{2, RoleSecondary},
		{5, RoleStartup},
		{3, RoleUnknown},
		{8, RoleUnknown},
		{-1, RoleUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, RoleFromState(tt.state))
		})
	}
}

func TestRole_Text(t *testing.T) {
	for _, r := range []Role{RoleUnknown, RoleStartup, RolePrimary, RoleSecondary} {
		b, err := r.MarshalText()
		require.NoError(t, err)
		var got Role
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, r, got)
	}
	var r Role
	require.NoError(t, r.UnmarshalText([]byte("secondary")))
	assert.Equal(t, RoleSecondary, r)
	assert.Error(t, r.UnmarshalText([]byte("ARBITER")))

	assert.Equal(t, 1, RolePrimary.State())
	assert.Equal(t, 2, RoleSecondary.State())
	assert.Equal(t, 0, RoleStartup.State())
	assert.Equal(t, 0, RoleUnknown.State())
}

func TestHost_MatchesTags(t *testing.T) {
	h := Host{Tags: map[string]string{"dc": "east", "rack": "r1"}}
	assert.True(t, h.MatchesTags(nil))
	assert.True(t, h.MatchesTags(map[string]string{}))
	assert.True(t, h.MatchesTags(map[string]string{"dc": "east"}))
	assert.False(t, h.MatchesTags(map[string]string{"dc": "west"}))
	assert.False(t, h.MatchesTags(map[string]string{"zone": "a"}))
	assert.False(t, Host{}.MatchesTags(map[string]string{"dc": "east"}))
}

func TestSnapshot_Immutable(t *testing.T) {
	tags := map[string]string{"dc": "east"}
	s := NewSnapshot("rs0", time.Now(), Host{Address: "a:1", Role: RolePrimary, Healthy: true, Tags: tags})

	tags["dc"] = "west"
	h, ok := s.Host("a:1")
	require.True(t, ok)
	assert.Equal(t, "east", h.Tags["dc"])

	hosts := s.Hosts()
	hosts[0].Healthy = false
	hosts[0].Tags["dc"] = "north"
	h, _ = s.Host("a:1")
	assert.True(t, h.Healthy)
	assert.Equal(t, "east", h.Tags["dc"])

	_, ok = s.Host("missing:1")
	assert.False(t, ok)
	assert.Nil(t, s.withHostDown("missing:1"))
}

func TestSnapshot_Kind(t *testing.T) {
	assert.Equal(t, KindSingle, NewSnapshot("", time.Now(), Host{Address: "a:1"}).Kind())
	assert.Equal(t, KindReplicaSet, NewSnapshot("rs0", time.Now()).Kind())
	assert.Equal(t, "single", KindSingle.String())
	assert.Equal(t, "replica_set", KindReplicaSet.String())
}

func TestSnapshot_Age(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSnapshot("rs0", at)
	assert.Equal(t, 5*time.Second, s.Age(at.Add(5*time.Second)))
}

func TestSnapshot_MarshalJSON(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSnapshot("rs0", at, Host{Address: "a:1", Role: RolePrimary, Healthy: true, PingMillis: 4})
	b, err := json.Marshal(s)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "rs0", out["replica_set"])
	assert.Equal(t, "replica_set", out["kind"])
	hosts := out["hosts"].([]any)
	require.Len(t, hosts, 1)
	h := hosts[0].(map[string]any)
	assert.Equal(t, "PRIMARY", h["role"])
	assert.EqualValues(t, 4, h["ping_ms"])
}

func TestDiff(t *testing.T) {
	now := time.Now()
	prev := NewSnapshot("rs0", now,
		Host{Address: "a:1", Role: RolePrimary, Healthy: true},
		Host{Address: "b:1", Role: RoleSecondary, Healthy: true},
		Host{Address: "c:1", Role: RoleSecondary, Healthy: false},
	)
	cur := NewSnapshot("rs0", now,
		Host{Address: "a:1", Role: RoleSecondary, Healthy: true},
		Host{Address: "c:1", Role: RolePrimary, Healthy: true},
	)
	c := diff(prev, cur)
	assert.Equal(t, []string{"b:1"}, c.Down)
	assert.Equal(t, []string{"c:1"}, c.Up)
	assert.True(t, c.PrimaryChanged)
	assert.False(t, c.Empty())

	assert.True(t, diff(cur, cur).Empty())
}

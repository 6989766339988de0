package xreadpref

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"primary", Primary},
		{"PRIMARY", Primary},
		{"primaryPreferred", PrimaryPreferred},
		{"PRIMARY_PREFERRED", PrimaryPreferred},
		{"secondary", Secondary},
		{"secondaryPreferred", SecondaryPreferred},
		{"secondary-preferred", SecondaryPreferred},
		{" nearest ", Nearest},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseMode("fastest")
	assert.ErrorIs(t, err, ErrInvalidReadPref)
	_, err = ParseMode("")
	assert.ErrorIs(t, err, ErrInvalidReadPref)
}

func TestMode_Text(t *testing.T) {
	for m := Primary; m <= Nearest; m++ {
		b, err := m.MarshalText()
		require.NoError(t, err)
		var got Mode
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, m, got)
	}

	bad := Mode(42)
	assert.False(t, bad.Valid())
	assert.Equal(t, "Mode(42)", bad.String())
	_, err := bad.MarshalText()
	assert.ErrorIs(t, err, ErrInvalidReadPref)

	var m Mode
	assert.ErrorIs(t, m.UnmarshalText([]byte("bogus")), ErrInvalidReadPref)
}

func TestReadPref_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rp      ReadPref
		wantErr bool
	}{
		{"zero value", ReadPref{}, false},
		{"default", Default(), false},
		{"secondary with tags", ReadPref{Mode: Secondary, TagSets: []TagSet{{"dc": "east"}, {}}}, false},
		{"unknown mode", ReadPref{Mode: Mode(9)}, true},
		{"negative window", ReadPref{Mode: Nearest, AcceptableLatency: -time.Millisecond}, true},
		{"primary with tags", ReadPref{Mode: Primary, TagSets: []TagSet{{"dc": "east"}}}, true},
		{"empty tag key", ReadPref{Mode: Nearest, TagSets: []TagSet{{"": "x"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rp.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReadPref)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tags := TagSet{"dc": "east"}
	rp, err := New(SecondaryPreferred, WithTagSets(tags), WithAcceptableLatency(30*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, SecondaryPreferred, rp.Mode)
	assert.Equal(t, 30*time.Millisecond, rp.Window())

	// 调用方之后修改 tags 不影响已构造的读偏好
	tags["dc"] = "west"
	assert.Equal(t, "east", rp.TagSets[0]["dc"])

	rp, err = New(Nearest)
	require.NoError(t, err)
	assert.Equal(t, DefaultAcceptableLatency, rp.AcceptableLatency)

	_, err = New(Primary, WithTagSets(TagSet{"dc": "east"}))
	assert.ErrorIs(t, err, ErrInvalidReadPref)
}

func TestReadPref_EqualAndString(t *testing.T) {
	assert.True(t, ReadPref{}.Equal(Default()))
	a := ReadPref{Mode: Secondary, TagSets: []TagSet{{"dc": "east", "rack": "1"}}}
	b := ReadPref{Mode: Secondary, TagSets: []TagSet{{"rack": "1", "dc": "east"}}, AcceptableLatency: 15 * time.Millisecond}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(ReadPref{Mode: Secondary}))
	assert.False(t, a.Equal(ReadPref{Mode: Nearest, TagSets: a.TagSets}))

	assert.Equal(t, "secondary tags=[{dc=east,rack=1}] window=15ms", a.String())
	assert.Equal(t, "primary window=15ms", Default().String())
}

package protocol

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchsync/internal/domain"
)

func sampleDescriptor() *domain.Descriptor {
	return &domain.Descriptor{
		ContentID:    "A-42",
		Source:       "A",
		EpisodeIndex: 3,
		CurrentTime:  42.5,
		IsPlaying:    true,
		Title:        "Show 42",
		ReleaseYear:  "2001",
		CanonicalID:  "42",
	}
}

func TestEncodeGolden(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		sender  string
		payload any
	}{
		{name: "update", typ: TypeUpdate, sender: "m1", payload: sampleDescriptor()},
		{name: "seek", typ: TypeSeek, payload: SeekPayload{Time: 120}},
		{name: "play", typ: TypePlay, sender: "m2"},
		{name: "joined", typ: TypeJoined, payload: JoinedPayload{MemberID: "m1", Role: "member", AuthToken: "tok"}},
		{name: "error", typ: TypeError, payload: ErrorPayload{Message: "permission denied"}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.typ, tt.sender, tt.payload)
			require.NoError(t, err)

			data, err := Encode(msg)
			require.NoError(t, err)

			g.Assert(t, tt.name, data)
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	c := NewCodec(nil)

	tests := []struct {
		name string
		in   string
		want domain.Event
	}{
		{
			name: "update",
			in:   `{"type":"update","sender_id":"m1","payload":{"content_id":"A-42","source":"A","episode_index":3,"current_time":42.5,"is_playing":true,"title":"Show 42","release_year":"2001","canonical_id":"42"}}`,
			want: domain.Event{Type: domain.EventUpdate, SenderID: "m1", Descriptor: sampleDescriptor()},
		},
		{
			name: "seek",
			in:   `{"type":"seek","sender_id":"m1","payload":{"time":7.25}}`,
			want: domain.Event{Type: domain.EventSeek, SenderID: "m1", Time: 7.25},
		},
		{
			name: "pause without payload",
			in:   `{"type":"pause","sender_id":"m1"}`,
			want: domain.Event{Type: domain.EventPause, SenderID: "m1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.in))
			require.NoError(t, err)

			ev, err := c.Event(msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	c := NewCodec(nil)

	tests := []struct {
		name string
		in   string
	}{
		{name: "change without payload", in: `{"type":"change"}`},
		{name: "update missing source", in: `{"type":"update","payload":{"content_id":"x","current_time":1}}`},
		{name: "negative seek", in: `{"type":"seek","payload":{"time":-3}}`},
		{name: "negative episode", in: `{"type":"change","payload":{"content_id":"x","source":"A","episode_index":-1}}`},
		{name: "wrong payload shape", in: `{"type":"seek","payload":"soon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.in))
			require.NoError(t, err)

			_, err = c.Event(msg)
			assert.ErrorIs(t, err, domain.ErrInvalidEvent)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = NewCodec(nil).Event(Message{Type: TypeJoined})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestFromEvent(t *testing.T) {
	c := NewCodec(nil)

	for _, ev := range []domain.Event{
		{Type: domain.EventChange, SenderID: "m1", Descriptor: sampleDescriptor()},
		{Type: domain.EventSeek, SenderID: "m1", Time: 12},
		{Type: domain.EventPlay, SenderID: "m1"},
	} {
		msg, err := FromEvent(ev)
		require.NoError(t, err)

		got, err := c.Event(msg)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}

	_, err := FromEvent(domain.Event{Type: domain.EventUpdate})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestJoined(t *testing.T) {
	c := NewCodec(nil)

	msg, err := NewMessage(TypeJoined, "", JoinedPayload{
		MemberID:  "m1",
		Role:      "owner",
		AuthToken: "tok",
		State:     sampleDescriptor(),
	})
	require.NoError(t, err)

	p, err := c.Joined(msg)
	require.NoError(t, err)
	assert.Equal(t, "owner", p.Role)
	assert.Equal(t, sampleDescriptor(), p.State)

	msg, err = NewMessage(TypeJoined, "", JoinedPayload{MemberID: "m1", Role: "admin", AuthToken: "tok"})
	require.NoError(t, err)
	_, err = c.Joined(msg)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestIsEvent(t *testing.T) {
	assert.True(t, TypeSeek.IsEvent())
	assert.True(t, TypeChange.IsEvent())
	assert.False(t, TypeJoined.IsEvent())
	assert.False(t, TypeError.IsEvent())
}

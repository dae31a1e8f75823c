package notify

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kart/internal/config"
)

type message struct {
	subject string
	data    []byte
}

func TestNew_EmptyURLIsNoop(t *testing.T) {
	n, err := New(config.NotifyConfig{Subject: "kart.events"})
	require.NoError(t, err)
	require.IsType(t, Noop{}, n)
	n.UnresolvedURL("x")
	require.NoError(t, n.Close())
}

func TestNATSNotifier_PublishesJSON(t *testing.T) {
	var sent []message
	n := &NATSNotifier{subject: "kart.events", publish: func(s string, d []byte) error {
		sent = append(sent, message{s, d})
		return nil
	}}

	n.UnresolvedURL("posts.missing")
	n.Rebuilt(RebuildEvent{Cycle: "c1", Snapshot: "abc", Entries: 3})

	require.Len(t, sent, 2)
	require.Equal(t, "kart.events.unresolved", sent[0].subject)
	var u UnresolvedEvent
	require.NoError(t, json.Unmarshal(sent[0].data, &u))
	require.Equal(t, "posts.missing", u.Key)

	require.Equal(t, "kart.events.rebuilt", sent[1].subject)
	var r RebuildEvent
	require.NoError(t, json.Unmarshal(sent[1].data, &r))
	require.Equal(t, "abc", r.Snapshot)
	require.False(t, r.Timestamp.IsZero())
	require.NoError(t, n.Close())
}

func TestNATSNotifier_PublishErrorsAreSwallowed(t *testing.T) {
	n := &NATSNotifier{subject: "s", publish: func(string, []byte) error { return errors.New("down") }}
	require.NotPanics(t, func() { n.UnresolvedURL("k") })
}

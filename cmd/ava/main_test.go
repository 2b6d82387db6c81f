package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriptions struct {
	got map[string]bool
	err error
}

func (f *fakeSubscriptions) UpsertSubscription(_ context.Context, placeID string, active bool) error {
	if f.err != nil {
		return f.err
	}
	if f.got == nil {
		f.got = map[string]bool{}
	}
	f.got[placeID] = active
	return nil
}

func TestSetSubscription_Activates(t *testing.T) {
	subs := &fakeSubscriptions{}
	var out bytes.Buffer

	require.NoError(t, setSubscription(context.Background(), &out, subs, " ChIJ123 ", true))

	assert.Equal(t, map[string]bool{"ChIJ123": true}, subs.got)
	assert.Equal(t, "ChIJ123 subscribed\n", out.String())
}

func TestSetSubscription_Deactivates(t *testing.T) {
	subs := &fakeSubscriptions{}
	var out bytes.Buffer

	require.NoError(t, setSubscription(context.Background(), &out, subs, "ChIJ123", false))

	assert.Equal(t, map[string]bool{"ChIJ123": false}, subs.got)
	assert.Equal(t, "ChIJ123 unsubscribed\n", out.String())
}

func TestSetSubscription_BlankPlaceID(t *testing.T) {
	subs := &fakeSubscriptions{}

	err := setSubscription(context.Background(), &bytes.Buffer{}, subs, "  ", true)

	require.Error(t, err)
	assert.Nil(t, subs.got)
}

func TestSetSubscription_StoreError(t *testing.T) {
	subs := &fakeSubscriptions{err: errors.New("connection refused")}

	err := setSubscription(context.Background(), &bytes.Buffer{}, subs, "ChIJ123", true)

	assert.ErrorContains(t, err, "connection refused")
}

func TestSubscribeCommandRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"subscribe"})
	require.NoError(t, err)
	assert.Equal(t, "subscribe", cmd.Name())
	assert.NotNil(t, cmd.Flags().Lookup("place-id"))
	assert.NotNil(t, cmd.Flags().Lookup("inactive"))
}

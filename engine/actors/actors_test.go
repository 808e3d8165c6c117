package actors

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"holderguard/engine/library"
)

func testConfig(t *testing.T) *viper.Viper {
	conf := viper.New()
	conf.Set("rootDir", t.TempDir()+"/")
	InitConfig(conf)
	SetConfig(conf)
	return conf
}

func TestEngineSettings(t *testing.T) {
	conf := testConfig(t)
	s := EngineSettings(conf)
	assert.Equal(t, library.ChainID(9992731), s.ChainID)
	assert.Equal(t, s.ChainID, s.HomeChainID)
	assert.Equal(t, time.Hour, s.AttestationValidity)
	assert.False(t, s.AcceptLegacyDocuments)
	assert.Equal(t, []string{"wss://relay.damus.io"}, s.Relays)

	conf.Set("attestationValidity", "90m")
	conf.Set("chainId", 7)
	s = EngineSettings(conf)
	assert.Equal(t, 90*time.Minute, s.AttestationValidity)
	assert.Equal(t, library.ChainID(7), s.ChainID)
}

func TestSnapshots(t *testing.T) {
	testConfig(t)
	var loaded []byte
	load := func(r io.Reader) (err error) {
		loaded, err = io.ReadAll(r)
		return err
	}
	require.NoError(t, Restore("test", "db", load))
	assert.Nil(t, loaded, "missing snapshots are skipped")

	require.NoError(t, Write("test", "db", func(w io.Writer) error {
		_, err := w.Write([]byte("first"))
		return err
	}))
	assert.Error(t, Write("test", "db", func(w io.Writer) error {
		w.Write([]byte("partial"))
		return io.ErrUnexpectedEOF
	}))
	require.NoError(t, Restore("test", "db", load))
	assert.Equal(t, "first", string(loaded), "a failed save keeps the previous snapshot")
}

func TestRequestEvent(t *testing.T) {
	sk := nostr.GeneratePrivateKey()
	holder := library.Sha256Sum("holder")
	e, err := RequestEvent(KindAddGuardian, holder, map[string]string{"holder_id": holder}, sk)
	require.NoError(t, err)
	ok, err := e.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, KindAddGuardian, e.Kind)
	tagged, ok := library.GetHolder(e)
	require.True(t, ok)
	assert.Equal(t, holder, tagged)

	var content map[string]string
	require.NoError(t, json.NewDecoder(bytes.NewBufferString(e.Content)).Decode(&content))
	assert.Equal(t, holder, content["holder_id"])

	e, err = RequestEvent(KindCreateHolder, "", struct{}{}, sk)
	require.NoError(t, err)
	assert.Empty(t, e.Tags)
}

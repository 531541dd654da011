package logging

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

func TestSetLevels(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(&buf, btclog.WithNoTimestamp())

	require.Equal(t, []string{"CNSS", "CORE", "NETW", "NODE", "RPCS", "STOR"},
		m.SupportedSubsystems())

	require.NoError(t, m.SetLevels("warn,CNSS=debug"))
	require.Equal(t, btclog.LevelDebug, m.Logger("CNSS").Level())
	require.Equal(t, btclog.LevelWarn, m.Logger("CORE").Level())

	m.Logger("CORE").Infof("hidden")
	m.Logger("CNSS").Debugf("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
	require.Contains(t, buf.String(), "CNSS")
}

func TestSetLevelsRejects(t *testing.T) {
	m := NewManager(&bytes.Buffer{})

	require.Error(t, m.SetLevels("loud"))
	require.Error(t, m.SetLevels("NOPE=debug"))
	require.Error(t, m.SetLevels("CORE=loud"))
}

package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Record(ActionLogin, "alice", true, nil)
	l.Record(ActionLogin, "mallory", false, logrus.Fields{"remote": "10.0.0.1"})

	var events []map[string]interface{}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var e map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		events = append(events, e)
	}

	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0]["username"])
	assert.Equal(t, true, events[0]["success"])
	assert.Equal(t, "info", events[0]["level"])
	assert.Equal(t, "warning", events[1]["level"])
	assert.Equal(t, "10.0.0.1", events[1]["remote"])
}

func TestOpen_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")

	for i := 0; i < 2; i++ {
		l, err := Open(path)
		require.NoError(t, err)
		l.Record(ActionRegister, "alice", true, nil)
		require.NoError(t, l.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}

func TestNilLog(t *testing.T) {
	var l *Log
	assert.NotPanics(t, func() { l.Record(ActionLogout, "alice", true, nil) })
	assert.NoError(t, l.Close())
}

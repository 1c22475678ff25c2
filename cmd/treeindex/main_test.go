package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"treeindex/btree"
	"treeindex/encoder"
	"treeindex/executor"
	"treeindex/journal"
	"treeindex/observer"
)

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// useFlags points the command line settings read by run at fixed values.
func useFlags(t *testing.T, path string, seed bool, records int) {
	t.Helper()
	d, l, j, s, r := 3, "bplustree", path, seed, records
	degree, layoutName, journalPath, shouldSeed, seedNumRecords = &d, &l, &j, &s, &r
	t.Cleanup(func() {
		degree, layoutName, journalPath, shouldSeed, seedNumRecords = nil, nil, nil, nil, nil
	})
}

func TestSeedAndReplay(t *testing.T) {
	color.NoColor = true
	path := filepath.Join(t.TempDir(), "session.journal")

	f, err := os.Create(path)
	require.NoError(t, err)
	tr, err := btree.New[string](3, btree.Plus)
	require.NoError(t, err)
	cfg := executor.DefaultConfig()
	cfg.Logger = quietLogger()
	cfg.Session = "replay-test"
	e, err := executor.New(tr, cfg)
	require.NoError(t, err)
	w, err := journal.NewWriter[string](f, e.Session(), encoder.StringCodec{})
	require.NoError(t, err)
	observed := make(chan error, 1)
	go func() { observed <- observer.Run[string](e.Events(), cfg.Logger, observer.NewJournalSink(w)) }()

	n, err := seedTreeWithTestRecords(e, 200)
	require.NoError(t, err)
	require.Equal(t, 200, n)
	require.NoError(t, e.Validate())
	snap, err := e.Traverse()
	require.NoError(t, err)
	require.Equal(t, 200, snap.Len)
	require.NoError(t, e.Close())
	require.NoError(t, <-observed)

	var out bytes.Buffer
	require.NoError(t, replay(path, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, "session replay-test", lines[0])
	require.True(t, strings.HasPrefix(lines[len(lines)-1], "close"), "last line %q", lines[len(lines)-1])
	require.Contains(t, out.String(), "peer=", "no split recorded with its peer")
}

func TestReplayMissingFile(t *testing.T) {
	require.Error(t, replay(filepath.Join(t.TempDir(), "absent"), io.Discard))
}

func TestSeedRejectsNegativeCount(t *testing.T) {
	tr, err := btree.New[string](3, btree.Classic)
	require.NoError(t, err)
	cfg := executor.DefaultConfig()
	cfg.Logger = quietLogger()
	e, err := executor.New(tr, cfg)
	require.NoError(t, err)
	go func() {
		for range e.Events() {
		}
	}()
	defer e.Close()

	n, err := seedTreeWithTestRecords(e, -1)
	require.Error(t, err)
	require.Zero(t, n)
}

func TestFailedSeedStillSealsJournal(t *testing.T) {
	color.NoColor = true
	path := filepath.Join(t.TempDir(), "seed.journal")
	useFlags(t, path, true, -5)

	require.Error(t, run(quietLogger()))

	var out bytes.Buffer
	require.NoError(t, replay(path, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[1], "close"), "journal ends with %q", lines[1])
}

func TestJournalThatCannotBeWritten(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full on this system")
	}
	_, err := openJournal("/dev/full", "s")
	require.Error(t, err)

	useFlags(t, "/dev/full", false, 0)
	require.Error(t, run(quietLogger()))
}

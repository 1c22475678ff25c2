package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/go-faker/faker/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"treeindex/btree"
	"treeindex/cli"
	"treeindex/encoder"
	"treeindex/executor"
	"treeindex/journal"
	"treeindex/observer"
)

var (
	degree, seedNumRecords              *int
	layoutName, journalPath, replayPath *string
	logLevel                            *string
	shouldSeed, noColor                 *bool
)

func seedTreeWithTestRecords(e *executor.Executor[string], n int) (int, error) {
	if n < 0 {
		return 0, errors.Errorf("cannot seed %d records", n)
	}
	keys, err := faker.RandomInt(0, 10*n, n)
	if err != nil {
		return 0, errors.Wrap(err, "generate seed keys")
	}
	for _, k := range keys {
		if _, err := e.Insert(k, faker.Word()+" "+faker.Word()); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func main() {
	setupFlags()
	if *noColor {
		color.NoColor = true
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal(err)
	}
	logger.SetLevel(level)

	if *replayPath != "" {
		if err := replay(*replayPath, os.Stdout); err != nil {
			logger.Fatal(err)
		}
		return
	}

	if err := run(logrus.NewEntry(logger)); err != nil {
		logger.Fatal(err)
	}
}

func run(log *logrus.Entry) error {
	layout, err := btree.ParseLayout(*layoutName)
	if err != nil {
		return err
	}
	tree, err := btree.New[string](*degree, layout)
	if err != nil {
		return err
	}

	cfg := executor.DefaultConfig()
	cfg.Logger = log
	e, err := executor.New(tree, cfg)
	if err != nil {
		return err
	}
	log = log.WithField("session", e.Session())

	counter := observer.NewCounter[string]()
	sinks := []observer.Sink[string]{observer.NewLogSink[string](log), counter}
	if *journalPath != "" {
		w, err := openJournal(*journalPath, e.Session())
		if err != nil {
			e.Close()
			return err
		}
		sinks = append(sinks, observer.NewJournalSink(w))
	}
	observed := make(chan error, 1)
	go func() { observed <- observer.Run(e.Events(), log, sinks...) }()

	if *shouldSeed {
		n, err := seedTreeWithTestRecords(e, *seedNumRecords)
		if err != nil {
			e.Close()
			<-observed
			return err
		}
		log.WithField("records", n).Info("seeded")
	}

	demo := cli.NewCli(bufio.NewScanner(os.Stdin), os.Stdout, e, true)
	demo.Start()

	if err := e.Close(); err != nil {
		return err
	}
	if err := <-observed; err != nil {
		return err
	}
	fields := logrus.Fields{}
	for kind, n := range counter.Counts() {
		fields[kind.String()] = n
	}
	log.WithFields(fields).Info("session finished")
	return nil
}

func openJournal(path, session string) (*journal.Writer[string], error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create journal")
	}
	w, err := journal.NewWriter[string](f, session, encoder.StringCodec{})
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// replay prints every event of a journal.
func replay(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open journal")
	}
	defer f.Close()

	r, err := journal.NewReader[string](f, encoder.StringCodec{})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "session %s\n", r.Session())
	kindColor := color.New(color.FgCyan)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-14s key=%d node=%d keys=%v", kindColor.Sprint(ev.Kind), ev.Key, ev.Node.ID, ev.Node.Keys)
		if ev.Peer != nil {
			fmt.Fprintf(out, " peer=%d peer_keys=%v", ev.Peer.ID, ev.Peer.Keys)
		}
		fmt.Fprintln(out)
	}
}

func setupFlags() {
	degree = flag.Int("degree", 3, "Minimum degree of the tree (at least 2).")
	layoutName = flag.String("layout", "btree", "Tree layout: btree or bplustree.")
	shouldSeed = flag.Bool("seed", false, "Seed the tree using records created with go-faker.")
	seedNumRecords = flag.Int("records", 1000, "Amount of records to seed the tree with upon startup.")
	journalPath = flag.String("journal", "", "Record every event of the session to this file.")
	replayPath = flag.String("replay", "", "Print the events recorded in a journal and exit.")
	logLevel = flag.String("log-level", "info", "Log level: debug, info, warn or error.")
	noColor = flag.Bool("no-color", false, "Disable coloured output.")
	flag.Usage = func() {
		fmt.Println("\nTree index CLI\n\nArguments:")
		flag.PrintDefaults()
	}
	flag.Parse()
}

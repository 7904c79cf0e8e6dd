// viaems-ctl is an interactive shell against an engine-management
// device: browse the configuration schema, read and write values, and
// watch the telemetry feed.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/via/viaems-protocol/pkg/feed"
	"github.com/via/viaems-protocol/pkg/inspect"
	"github.com/via/viaems-protocol/pkg/protocol"
	"github.com/via/viaems-protocol/pkg/structure"
	"github.com/via/viaems-protocol/pkg/transport"
	"github.com/via/viaems-protocol/pkg/version"
)

type shell struct {
	proto     *protocol.Protocol
	formatter *inspect.Formatter
	root      *structure.Node

	watching atomic.Bool
	sampleMu sync.Mutex
	lastKeys []feed.FieldKey
	lastVals []feed.FieldValue
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "viaems-ctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	devicePath := flag.String("device", "/dev/ttyACM0", "serial device path")
	simPath := flag.String("sim", "", "simulator binary to fork")
	timeout := flag.Duration("timeout", time.Second, "request timeout")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Current)
		return nil
	}

	p := protocol.New()
	p.SetRequestTimeout(*timeout)

	sh := &shell{
		proto:     p,
		formatter: inspect.NewFormatter(),
	}
	p.SetFeedHandler(sh.onFeed)

	if *simPath != "" {
		sim, err := transport.StartSim(*simPath, nil, p, transport.StreamConfig{})
		if err != nil {
			return err
		}
		defer sim.Stop()
	} else {
		tty, err := os.OpenFile(*devicePath, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("failed to open device %q: %w", *devicePath, err)
		}
		stream := transport.NewStream(tty, p, transport.StreamConfig{})
		stream.Start()
		defer stream.Close()
	}

	sh.loop()
	return nil
}

func (s *shell) onFeed(keys []feed.FieldKey, values []feed.FieldValue) {
	s.sampleMu.Lock()
	s.lastKeys = keys
	s.lastVals = values
	s.sampleMu.Unlock()
	if s.watching.Load() {
		fmt.Println(s.formatter.FormatSample(keys, values))
	}
}

// lastSample returns the most recent telemetry sample.
func (s *shell) lastSample() ([]feed.FieldKey, []feed.FieldValue) {
	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()
	return s.lastKeys, s.lastVals
}

func (s *shell) loop() {
	reader := bufio.NewReader(os.Stdin)
	s.printHelp()

	for {
		fmt.Print("\nviaems> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "structure", "tree":
			s.cmdStructure()

		case "ls":
			s.cmdList(args)

		case "get", "g":
			s.cmdGet(args)

		case "set", "s":
			s.cmdSet(args)

		case "feed", "f":
			keys, values := s.lastSample()
			if len(keys) > 0 {
				fmt.Println(s.formatter.FormatSample(keys, values))
			} else {
				fmt.Println("no feed seen yet")
			}

		case "watch", "w":
			s.watching.Store(!s.watching.Load())
			if s.watching.Load() {
				fmt.Println("watching feed (watch again to stop)")
			}

		case "quit", "exit", "q":
			return

		default:
			fmt.Printf("unknown command %q; try help\n", cmd)
		}
	}
}

func (s *shell) printHelp() {
	fmt.Println(`commands:
  structure            fetch and print the full schema
  ls [path]            list children under a path
  get <path>           read a leaf value
  set <path> <value>   write a leaf value
  feed                 show the most recent telemetry sample
  watch                toggle live feed output
  quit`)
}

// ensureRoot fetches the schema once and caches it.
func (s *shell) ensureRoot() *structure.Node {
	if s.root != nil {
		return s.root
	}
	root, err := s.proto.GetStructure(context.Background())
	if err != nil {
		fmt.Printf("get structure failed: %v\n", err)
		return nil
	}
	s.root = root
	return root
}

func (s *shell) cmdStructure() {
	s.root = nil // force a refetch
	if root := s.ensureRoot(); root != nil {
		fmt.Print(s.formatter.FormatTree(root))
	}
}

func (s *shell) cmdList(args []string) {
	root := s.ensureRoot()
	if root == nil {
		return
	}

	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	node := structure.FindString(root, path)
	if node == nil {
		fmt.Printf("no node at %q\n", path)
		return
	}

	switch node.Kind {
	case structure.NodeMap:
		for i, name := range node.Names {
			fmt.Printf("%s (%s)\n", name, node.Children[i].Kind)
		}
	case structure.NodeList:
		for i, child := range node.Children {
			fmt.Printf("%d (%s)\n", i, child.Kind)
		}
	case structure.NodeLeaf:
		fmt.Println(s.formatterLeafLine(node))
	}
}

func (s *shell) formatterLeafLine(node *structure.Node) string {
	line := fmt.Sprintf("(%s)", node.ValueKind)
	if node.Description != "" {
		line += " " + node.Description
	}
	return line
}

func (s *shell) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: get <path>")
		return
	}
	node := s.leafAt(args[0])
	if node == nil {
		return
	}

	value, err := s.proto.Get(context.Background(), node)
	if err != nil {
		fmt.Printf("get failed: %v\n", err)
		return
	}
	fmt.Printf("%s = %s\n", node.Path, value)
}

func (s *shell) cmdSet(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: set <path> <value>")
		return
	}
	node := s.leafAt(args[0])
	if node == nil {
		return
	}

	value, err := parseValue(node, args[1])
	if err != nil {
		fmt.Printf("bad value: %v\n", err)
		return
	}

	result, err := s.proto.Set(context.Background(), node, value)
	if err != nil {
		fmt.Printf("set failed: %v\n", err)
		return
	}
	fmt.Printf("%s = %s\n", node.Path, result)
}

func (s *shell) leafAt(path string) *structure.Node {
	root := s.ensureRoot()
	if root == nil {
		return nil
	}
	node := structure.FindString(root, path)
	if node == nil {
		fmt.Printf("no node at %q\n", path)
		return nil
	}
	if !node.IsLeaf() {
		fmt.Printf("%q is a %s, not a leaf\n", path, node.Kind)
		return nil
	}
	return node
}

// parseValue interprets the argument per the leaf's declared kind.
func parseValue(node *structure.Node, arg string) (structure.Value, error) {
	switch node.ValueKind {
	case structure.ValueUint32:
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return structure.Value{}, err
		}
		return structure.Uint32Value(uint32(v)), nil

	case structure.ValueFloat:
		v, err := strconv.ParseFloat(arg, 32)
		if err != nil {
			return structure.Value{}, err
		}
		return structure.FloatValue(float32(v)), nil

	case structure.ValueBool:
		v, err := strconv.ParseBool(arg)
		if err != nil {
			return structure.Value{}, err
		}
		return structure.BoolValue(v), nil

	case structure.ValueString:
		return structure.StringValue(arg), nil

	default:
		return structure.Value{}, fmt.Errorf("cannot set a %s leaf", node.ValueKind)
	}
}

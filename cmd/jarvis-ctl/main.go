package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"jarvis/internal/ipc"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: jarvis-ctl [-s socket] <%s> [arg]\n", strings.Join(ipc.Commands, "|"))
	cli.PrintDefaults()
}

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	timeout := cli.DurationP("timeout", "t", 10*time.Second, "Reply timeout")
	cli.Usage = usage
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0], Arg: strings.Join(args[1:], " ")}
	switch msg.Cmd {
	case "hear":
		// the daemon reads the file, so relative paths are resolved here
		if abs, err := filepath.Abs(msg.Arg); err == nil {
			msg.Arg = abs
		}
	case "image":
		data, err := os.ReadFile(msg.Arg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read image:", err)
			os.Exit(1)
		}
		msg.Data, msg.Arg = data, ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := ipc.Send(ctx, *socket, msg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jarvis-daemon not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Fprintln(os.Stderr, "error:", reply.Error)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(reply)
}

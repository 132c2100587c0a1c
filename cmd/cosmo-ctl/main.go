package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"cosmo/internal/ipc"
)

const usage = `usage: cosmo-ctl [--socket PATH] COMMAND [ARG...]

commands:
  search TEXT...        look up destination candidates
  select N              choose result N (1-based)
  start                 begin navigation on the current route
  stop                  stop navigation
  repeat                repeat the current instruction
  mode walking|transit  set the travel mode
  status                print session state
`

func main() {
	socketPath := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	req := ipc.Request{Cmd: args[0], Arg: strings.Join(args[1:], " ")}
	resp, err := ipc.Send(*socketPath, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cosmo-daemon not running:", err)
		os.Exit(1)
	}

	if !resp.OK {
		fmt.Fprintln(os.Stderr, "error:", resp.Message)
		os.Exit(1)
	}
	fmt.Println(resp.Message)
	if resp.State != nil {
		out, _ := json.MarshalIndent(resp.State, "", "  ")
		fmt.Println(string(out))
	}
}

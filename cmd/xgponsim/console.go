// The operator console: a tiny read-only SSH CLI into a running topology,
// exposing "show tconts", "show bwmap" and "show stats". Grounded on the
// SSH config plumbing in drivers/cli/driver.go, with the client role
// inverted into a server — this module listens for SSH connections
// instead of dialing out to one.
package main

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net"
	"sort"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/nanoncore/xgponsim/simclock"
)

// Console serves the operator CLI over SSH for one running Topology.
type Console struct {
	addr    string
	topo    *Topology
	log     simclock.Logger
	hostKey ssh.Signer
}

// NewConsole builds a console bound to topo, listening on addr once
// ListenAndServe is called. A fresh host key is generated per run; the
// simulator has no persisted state to keep one across runs (spec.md §1).
func NewConsole(addr string, topo *Topology, log simclock.Logger) (*Console, error) {
	if topo == nil {
		return nil, fmt.Errorf("xgponsim: NewConsole requires a non-nil Topology")
	}
	if log == nil {
		log = simclock.NopLogger{}
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("xgponsim: generating console host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("xgponsim: wrapping console host key: %w", err)
	}
	return &Console{addr: addr, topo: topo, log: log, hostKey: signer}, nil
}

// ListenAndServe accepts console connections until the listener is closed.
// Any client is accepted without authentication: the console exposes no
// configuration surface, only read-only inspection of simulated state.
func (c *Console) ListenAndServe() error {
	serverConfig := &ssh.ServerConfig{NoClientAuth: true}
	serverConfig.AddHostKey(c.hostKey)

	listener, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("xgponsim: console listen on %s: %w", c.addr, err)
	}
	defer listener.Close()

	for {
		nConn, err := listener.Accept()
		if err != nil {
			return err
		}
		go c.handleConn(nConn, serverConfig)
	}
}

func (c *Console) handleConn(nConn net.Conn, serverConfig *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(nConn, serverConfig)
	if err != nil {
		c.log.Warnf("xgponsim: console handshake failed: %v", err)
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "only interactive sessions are supported")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			c.log.Warnf("xgponsim: console channel accept failed: %v", err)
			continue
		}
		go c.serveSession(channel, requests)
	}
}

func (c *Console) serveSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	for req := range requests {
		switch req.Type {
		case "shell":
			_ = req.Reply(true, nil)
			go c.runShell(channel)
		case "pty-req":
			_ = req.Reply(true, nil)
		default:
			_ = req.Reply(false, nil)
		}
	}
}

func (c *Console) runShell(channel ssh.Channel) {
	defer channel.Close()
	fmt.Fprint(channel, "xgponsim> ")
	scanner := bufio.NewScanner(channel)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "exit", "quit":
			return
		default:
			fmt.Fprintln(channel, c.runCommand(line))
		}
		fmt.Fprint(channel, "xgponsim> ")
	}
}

func (c *Console) runCommand(line string) string {
	switch line {
	case "show tconts":
		return c.showTconts()
	case "show bwmap":
		return c.showBwmap()
	case "show stats":
		return c.showStats()
	default:
		return fmt.Sprintf("unknown command %q (try: show tconts, show bwmap, show stats)", line)
	}
}

func (c *Console) showTconts() string {
	var b strings.Builder
	for _, allocId := range c.topo.OltMgr.Order() {
		t, ok := c.topo.OltMgr.Tcont(allocId)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "alloc=%d onu=%d type=%s deficit=%d last-served=%s\n",
			uint16(t.AllocId), uint16(t.OnuId), t.QoS.Type, t.Deficit, t.LastServed)
	}
	if b.Len() == 0 {
		return "(no tconts registered)"
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Console) showBwmap() string {
	m := c.topo.LastBwmap
	if len(m.Allocs) == 0 {
		return "(no bwmap generated yet)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "creation-time=%s\n", m.CreationTime)
	for _, a := range m.Allocs {
		fmt.Fprintf(&b, "  alloc=%d start=%d size=%d flags=%d\n", uint16(a.AllocId), a.StartTime, a.GrantSize, a.Flags)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Console) showStats() string {
	snap := c.topo.Collector.Snapshot()
	if len(snap) == 0 {
		return "(no traffic recorded yet)"
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].Onu < snap[j].Onu })
	var b strings.Builder
	for _, s := range snap {
		fmt.Fprintf(&b, "onu=%d upstream-bytes=%d downstream-bytes=%d\n", uint16(s.Onu), s.UpstreamBytes, s.DownstreamBytes)
	}
	return strings.TrimRight(b.String(), "\n")
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydrafeed/quotestream/internal/config"
	"github.com/hydrafeed/quotestream/internal/control"
	"github.com/hydrafeed/quotestream/internal/logging"
	"github.com/hydrafeed/quotestream/internal/wire"
)

// pingInterval is how often the client re-pings the server's shared UDP
// socket once locked on, matching the server's liveness window.
const pingInterval = 2 * time.Second

// udpReadTimeout bounds each ReadFromUDP call so the receive loop can notice
// shutdown and lock-on state changes without blocking indefinitely.
const udpReadTimeout = 200 * time.Millisecond

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values, applied over the loaded
// config file / environment without persisting back to it.
type cliFlags struct {
	configPath  string
	server      string
	udpPort     int
	bindIP      string
	tickersFile string
	tickersText string
	jsonLogs    bool
	debug       bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&f.server, "server", "", "quotestream server control address HOST:PORT")
	flag.IntVar(&f.udpPort, "udp-port", 0, "Local UDP port to bind and advertise")
	flag.StringVar(&f.bindIP, "bind-ip", "", "Local IP to bind and advertise (default 127.0.0.1)")
	flag.StringVar(&f.tickersFile, "tickers-file", "", "Path to a newline-delimited ticker list")
	flag.StringVar(&f.tickersText, "tickers", "", "Inline comma-separated ticker list")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.ClientConfig, f cliFlags) {
	if f.server != "" {
		cfg.Server = f.server
	}
	if f.udpPort != 0 {
		cfg.UDPPort = f.udpPort
	}
	if f.bindIP != "" {
		cfg.BindIP = f.bindIP
	}
	if f.tickersFile != "" {
		cfg.Tickers.File = f.tickersFile
		cfg.Tickers.Text = ""
	}
	if f.tickersText != "" {
		cfg.Tickers.Text = f.tickersText
		cfg.Tickers.File = ""
	}
	if f.jsonLogs {
		cfg.Logging.JSON = true
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

func run() error {
	flags := parseFlags()
	if flags.tickersFile != "" && flags.tickersText != "" {
		return fmt.Errorf("--tickers-file and --tickers are mutually exclusive")
	}

	cfg, err := config.LoadClientConfig(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)
	if cfg.Server == "" {
		return fmt.Errorf("server address is required")
	}
	if cfg.UDPPort <= 0 || cfg.UDPPort > 65535 {
		return fmt.Errorf("udp-port must be 1..65535")
	}

	logger := logging.Configure(logging.Config{
		Level:       cfg.Logging.Level,
		JSON:        cfg.Logging.JSON,
		IncludePID:  cfg.Logging.IncludePID,
		ExtraFields: cfg.Logging.ExtraFields,
	})

	tickers, err := resolveTickers(cfg.Tickers)
	if err != nil {
		return fmt.Errorf("resolve tickers: %w", err)
	}
	if len(tickers) == 0 {
		return fmt.Errorf("ticker list is empty")
	}

	bindAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.BindIP, cfg.UDPPort))
	if err != nil {
		return fmt.Errorf("resolve bind address: %w", err)
	}
	udpConn, err := net.ListenUDP("udp", bindAddr)
	if err != nil {
		return fmt.Errorf("bind local udp socket %s: %w", bindAddr, err)
	}
	defer udpConn.Close()

	if err := register(cfg.Server, bindAddr, tickers); err != nil {
		return fmt.Errorf("register stream: %w", err)
	}
	logger.Info("registered with server", "server", cfg.Server, "udp_bind", bindAddr.String(), "tickers", tickers)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runClient(ctx, udpConn, logger)
	logger.Info("client shut down")
	return nil
}

// resolveTickers applies TickersConfig: file, then inline text.
func resolveTickers(cfg config.TickersConfig) ([]string, error) {
	switch {
	case cfg.File != "":
		return loadTickersFile(cfg.File)
	case cfg.Text != "":
		return control.NormalizeTickers(splitCommaList(cfg.Text)), nil
	default:
		return nil, fmt.Errorf("exactly one of tickers-file or tickers is required")
	}
}

func loadTickersFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw = append(raw, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return control.NormalizeTickers(raw), nil
}

func splitCommaList(text string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == ',' {
			out = append(out, text[start:i])
			start = i + 1
		}
	}
	return out
}

// register dials the server's TCP control port, sends a STREAM command
// advertising udpAddr as the datagram destination, and requires an "OK\n"
// reply before returning.
func register(server string, udpAddr *net.UDPAddr, tickers []string) error {
	conn, err := net.DialTimeout("tcp", server, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial control port: %w", err)
	}
	defer conn.Close()

	cmd := control.Command{Target: udpAddr, Tickers: tickers}
	line := control.Format(cmd) + "\n"

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte(line)); err != nil {
		return fmt.Errorf("send stream command: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read server reply: %w", err)
	}
	if reply != "OK\n" {
		return fmt.Errorf("server rejected stream request: %s", reply)
	}
	return nil
}

// runClient drives the UDP lock-on loop: the socket starts disconnected and
// accepts a datagram from any source, then locks onto the first sender's
// address (the server's shared UDP socket) and ignores everything else.
// Once locked on, a ping-sender goroutine keeps the session alive on the
// server's liveness tracker.
func runClient(ctx context.Context, conn *net.UDPConn, logger *slog.Logger) {
	lockCh := make(chan *net.UDPAddr, 1)
	done := make(chan struct{})
	go pingSender(ctx, conn, lockCh, logger, done)
	defer func() {
		<-done
	}()

	var peer *net.UDPAddr
	buf := make([]byte, 2048)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(udpReadTimeout))
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			logger.Warn("udp read error", "error", err)
			continue
		}

		if peer != nil && (!src.IP.Equal(peer.IP) || src.Port != peer.Port) {
			continue
		}

		pkt, err := wire.Decode(buf[:n])
		if err != nil {
			logger.Debug("dropping malformed datagram", "from", src, "error", err)
			continue
		}

		if peer == nil {
			peer = src
			logger.Info("locked on to server", "server_udp", src.String())
			select {
			case lockCh <- src:
			default:
			}
		}

		if pkt.IsPing {
			continue
		}
		printQuote(pkt.Quote)
	}
}

func printQuote(q wire.Quote) {
	fmt.Printf("%-8s price=%d.%02d volume=%d ts=%d\n",
		q.Ticker, q.Price/100, q.Price%100, q.Volume, q.TimestampMs)
}

// pingSender waits for the locked-on server address, then sends a keep-alive
// ping on the same socket every pingInterval so the server's source port
// observation matches the one seen on the quote path.
func pingSender(ctx context.Context, conn *net.UDPConn, lockCh <-chan *net.UDPAddr, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)

	var target *net.UDPAddr
	select {
	case target = <-lockCh:
	case <-ctx.Done():
		return
	}

	pingBytes, err := wire.Encode(wire.PingPacket())
	if err != nil {
		logger.Error("encode ping", "error", err)
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := conn.WriteToUDP(pingBytes, target); err != nil {
				logger.Warn("ping send failed", "error", err)
			}
		}
	}
}

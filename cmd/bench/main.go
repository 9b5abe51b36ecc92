package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/hydrafeed/quotestream/internal/control"
	"github.com/hydrafeed/quotestream/internal/wire"
)

func main() {
	var (
		server      = flag.String("server", "127.0.0.1:7890", "quotestream server control HOST:PORT")
		tickers     = flag.String("tickers", "AAPL,MSFT,GOOG", "Comma-separated ticker subscription per client")
		concurrency = flag.Int("concurrency", 50, "Number of simulated subscribers")
		duration    = flag.Duration("duration", 10*time.Second, "How long each subscriber stays connected")
		timeout     = flag.Duration("timeout", 2*time.Second, "Per-datagram read timeout")
		recvSize    = flag.Int("recv-size", 2048, "UDP receive buffer size")
	)
	flag.Parse()

	tickerList := control.NormalizeTickers(splitComma(*tickers))
	if len(tickerList) == 0 {
		fmt.Println("no tickers given")
		return
	}

	conc := *concurrency
	if conc < 1 {
		conc = 1
	}

	lat := make([]float64, 0, conc*8)
	var latMu sync.Mutex
	var received, registered int64
	var countMu sync.Mutex

	t0 := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < conc; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSubscriber(*server, tickerList, *duration, *timeout, *recvSize, &lat, &latMu, &received, &registered, &countMu)
		}()
	}
	wg.Wait()
	elapsed := time.Since(t0).Seconds()

	if len(lat) == 0 {
		fmt.Printf("subscribers=%d registered=%d received=0 quotes over %.1fs\n", conc, registered, elapsed)
		return
	}
	sort.Float64s(lat)
	p50 := percentile(lat, 50)
	p95 := percentile(lat, 95)
	p99 := percentile(lat, 99)
	qps := float64(received) / elapsed

	fmt.Printf("server=%s tickers=%v concurrency=%d registered=%d\n", *server, tickerList, conc, registered)
	fmt.Printf("elapsed_s=%.3f quotes=%d quotes_per_s=%.1f\n", elapsed, received, qps)
	fmt.Printf("first_quote_latency_ms p50=%.3f p95=%.3f p99=%.3f min=%.3f max=%.3f\n", p50, p95, p99, lat[0], lat[len(lat)-1])
}

// runSubscriber registers one simulated client with the control port, then
// measures the delay from registration to the first quote datagram it
// receives before the subscriber's lifetime expires.
func runSubscriber(server string, tickers []string, lifetime, timeout time.Duration, recvSize int, lat *[]float64, latMu *sync.Mutex, received, registered *int64, countMu *sync.Mutex) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return
	}

	start := time.Now()
	if err := register(server, localAddr, tickers); err != nil {
		return
	}
	countMu.Lock()
	*registered++
	countMu.Unlock()

	buf := make([]byte, recvSize)
	deadline := time.Now().Add(lifetime)
	firstQuoteSeen := false

	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		pkt, err := wire.Decode(buf[:n])
		if err != nil || pkt.IsPing {
			continue
		}

		countMu.Lock()
		*received++
		countMu.Unlock()

		if !firstQuoteSeen {
			firstQuoteSeen = true
			ms := float64(time.Since(start).Microseconds()) / 1000.0
			latMu.Lock()
			*lat = append(*lat, ms)
			latMu.Unlock()
		}
	}
}

func register(server string, udpAddr *net.UDPAddr, tickers []string) error {
	conn, err := net.DialTimeout("tcp", server, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	line := control.Format(control.Command{Target: udpAddr, Tickers: tickers}) + "\n"
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte(line)); err != nil {
		return err
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if reply != "OK\n" {
		return fmt.Errorf("server rejected stream request: %s", reply)
	}
	return nil
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int(float64(len(sorted))*float64(p)/100.0) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func splitComma(text string) []string {
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

// Package control implements the one-shot TCP STREAM command: parsing,
// ticker normalization, and response formatting.
package control

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// Command is a parsed STREAM request.
type Command struct {
	Target  *net.UDPAddr
	Tickers []string
}

// ParseError is returned by Parse and carries a stable reason string usable
// directly in an ERR response line.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return e.Reason
}

func parseErr(reason string) error {
	return &ParseError{Reason: reason}
}

// Parse parses one STREAM command line per the protocol grammar:
//
//	STREAM udp://HOST:PORT TICKER1,TICKER2,...
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, parseErr("EmptyCommand")
	}

	fields := strings.Fields(line)
	verb := fields[0]
	if !strings.EqualFold(verb, "STREAM") {
		return Command{}, parseErr(fmt.Sprintf("UnknownCommand(%s)", verb))
	}

	if len(fields) < 2 {
		return Command{}, parseErr("MissingUdpTarget")
	}
	rawTarget := fields[1]
	const scheme = "udp://"
	if !strings.HasPrefix(rawTarget, scheme) {
		return Command{}, parseErr("BadUdpScheme")
	}
	hostport := rawTarget[len(scheme):]
	addr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return Command{}, parseErr("InvalidUdpAddress")
	}

	if len(fields) < 3 {
		return Command{}, parseErr("MissingTickers")
	}
	rawTickers := strings.Join(fields[2:], " ")
	tickers := NormalizeTickers(strings.Split(rawTickers, ","))
	if len(tickers) == 0 {
		return Command{}, parseErr("EmptyTickers")
	}

	return Command{Target: addr, Tickers: tickers}, nil
}

// NormalizeTickers trims, uppercases, drops empties, sorts, and de-duplicates
// a raw ticker list.
func NormalizeTickers(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		t := strings.ToUpper(strings.TrimSpace(item))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Format renders a Command back into its canonical STREAM command line,
// using the normalized ticker set and the target's string form. Round-trips
// with Parse on canonical inputs.
func Format(cmd Command) string {
	return fmt.Sprintf("STREAM udp://%s %s", cmd.Target.String(), strings.Join(cmd.Tickers, ","))
}

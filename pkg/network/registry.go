package network

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/multiformats/go-multiaddr"
)

// ErrInvalidAddress is returned when a peer address can't be reduced to a
// host and port.
var ErrInvalidAddress = errors.New("invalid peer address")

// PeerStore persists registered peers.
type PeerStore interface {
	AddPeers(addrs []string) error
	LoadPeers() ([]string, error)
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// ParseAddress reduces addr to its canonical host:port form. It accepts a
// URL such as http://10.0.0.2:5000, a bare host:port, or a multiaddr such as
// /ip4/10.0.0.2/tcp/5000.
func ParseAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)

	var (
		host, port string
		err        error
	)
	switch {
	case addr == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)

	case strings.HasPrefix(addr, "/"):
		host, port, err = parseMultiaddr(addr)

	case strings.Contains(addr, "://"):
		host, port, err = parseURL(addr)

	default:
		host, port, err = net.SplitHostPort(addr)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidAddress, addr, err)
	}

	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidAddress, addr)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("%w: %q has bad port %q", ErrInvalidAddress,
			addr, port)
	}

	return net.JoinHostPort(strings.ToLower(host), strconv.Itoa(n)), nil
}

func parseURL(addr string) (string, string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", err
	}
	if u.Host == "" {
		return "", "", errors.New("missing host")
	}

	port := u.Port()
	if port == "" {
		var ok bool
		port, ok = defaultPorts[strings.ToLower(u.Scheme)]
		if !ok {
			return "", "", fmt.Errorf("no port and no default for scheme %q",
				u.Scheme)
		}
	}
	return u.Hostname(), port, nil
}

func parseMultiaddr(addr string) (string, string, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return "", "", err
	}

	var host string
	for _, code := range []int{
		multiaddr.P_IP4, multiaddr.P_IP6, multiaddr.P_DNS,
		multiaddr.P_DNS4, multiaddr.P_DNS6,
	} {
		if v, err := ma.ValueForProtocol(code); err == nil {
			host = v
			break
		}
	}
	if host == "" {
		return "", "", errors.New("no ip or dns component")
	}

	port, err := ma.ValueForProtocol(multiaddr.P_TCP)
	if err != nil {
		return "", "", errors.New("no tcp component")
	}
	return host, port, nil
}

// Registry is the set of known peers, keyed by canonical address.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]struct{}
	store PeerStore
}

// NewRegistry creates a registry, loading previously stored peers when store
// is non-nil.
func NewRegistry(store PeerStore) (*Registry, error) {
	r := &Registry{
		nodes: make(map[string]struct{}),
		store: store,
	}
	if store == nil {
		return r, nil
	}

	peers, err := store.LoadPeers()
	if err != nil {
		return nil, fmt.Errorf("failed to load peers: %w", err)
	}
	for _, p := range peers {
		r.nodes[p] = struct{}{}
	}
	if len(peers) > 0 {
		log.Infof("Loaded %d known peers", len(peers))
	}

	return r, nil
}

// Register adds addr and returns its canonical form. Registering a known
// peer again is a no-op.
func (r *Registry) Register(addr string) (string, error) {
	canonical, err := ParseAddress(addr)
	if err != nil {
		return "", err
	}
	if err := r.add([]string{canonical}); err != nil {
		return "", err
	}
	return canonical, nil
}

// RegisterAll registers every address or none of them. The whole batch is
// parsed before anything is added, so one invalid address leaves the
// registry unchanged.
func (r *Registry) RegisterAll(addrs []string) error {
	canonical := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		c, err := ParseAddress(addr)
		if err != nil {
			return err
		}
		canonical = append(canonical, c)
	}
	return r.add(canonical)
}

func (r *Registry) add(addrs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make([]string, 0, len(addrs))
	seen := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		if _, ok := r.nodes[addr]; ok {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		fresh = append(fresh, addr)
	}
	if len(fresh) == 0 {
		return nil
	}

	if r.store != nil {
		if err := r.store.AddPeers(fresh); err != nil {
			return fmt.Errorf("failed to persist peers: %w", err)
		}
	}
	for _, addr := range fresh {
		r.nodes[addr] = struct{}{}
		log.Infof("Registered peer %s", addr)
	}
	return nil
}

// List returns the registered peers in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.nodes))
	for addr := range r.nodes {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.nodes)
}

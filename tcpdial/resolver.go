package tcpdial

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Candidate is one resolved endpoint to attempt a connection to.
type Candidate struct {
	// Address family, unix.AF_INET or unix.AF_INET6.
	Family int

	// Socket address ready for connect.
	Addr unix.Sockaddr

	IP   net.IP
	Port int
}

func (c Candidate) String() string {
	return net.JoinHostPort(c.IP.String(), strconv.Itoa(c.Port))
}

// Resolver turns a host and port into an ordered candidate list. Candidates
// are attempted strictly in the returned order.
type Resolver interface {
	Resolve(ctx context.Context, host, port string) ([]Candidate, error)
}

// NewResolver returns a Resolver backed by the system resolver.
func NewResolver() Resolver {
	return netResolver{r: net.DefaultResolver}
}

type netResolver struct {
	r *net.Resolver
}

func (nr netResolver) Resolve(ctx context.Context, host, port string) ([]Candidate, error) {
	portNum, err := nr.r.LookupPort(ctx, "tcp", port)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve port %q", port)
	}

	addrs, err := nr.r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve host %q", host)
	}

	candidates := make([]Candidate, 0, len(addrs))
	for _, addr := range addrs {
		c, ok := newCandidate(addr.IP, portNum)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func newCandidate(ip net.IP, port int) (Candidate, bool) {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return Candidate{Family: unix.AF_INET, Addr: sa, IP: ip4, Port: port}, true
	}
	if ip16 := ip.To16(); ip16 != nil {
		sa := &unix.SockaddrInet6{Port: port}
		copy(sa.Addr[:], ip16)
		return Candidate{Family: unix.AF_INET6, Addr: sa, IP: ip16, Port: port}, true
	}
	return Candidate{}, false
}

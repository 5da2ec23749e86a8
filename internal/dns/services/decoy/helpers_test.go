package decoy

import (
	"sync"

	"github.com/haukened/decoy-dns/internal/dns/config"
)

// seqSource replays fixed draws, clamped into [0, n).
type seqSource struct {
	mu    sync.Mutex
	draws []int
	i     int
}

func (s *seqSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.draws[s.i%len(s.draws)]
	s.i++
	if v >= n {
		return n - 1
	}
	return v
}

// maxSource always returns the largest allowed draw.
type maxSource struct{}

func (maxSource) IntN(n int) int { return n - 1 }

func testBuckets() config.BucketsConfig {
	return config.BucketsConfig{
		Locations:   []string{"eu", "us", "cn", "br", "ru"},
		Directions:  []string{"north", "east", "south", "west", "central"},
		Services:    []string{"aws", "smb", "dc", "fs", "sip"},
		Counter:     config.CounterRange{Min: 1, Max: 8},
		Departments: []string{"srvpool", "client", "it", "head"},
		Domains:     []string{"example.com", "sample.com"},
	}
}

func randomConfig() config.DecoyConfig {
	return config.DecoyConfig{Mode: config.ModeRandom, Buckets: testBuckets()}
}

func fixedConfig(ipv4, ipv6 []string) config.DecoyConfig {
	return config.DecoyConfig{
		Mode:    config.ModeFixed,
		Pools:   config.PoolsConfig{IPv4: ipv4, IPv6: ipv6},
		Buckets: testBuckets(),
	}
}

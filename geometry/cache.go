package geometry

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

const soupCacheVersion = 1

type soupSnapshot struct {
	Version int           `msgpack:"version"`
	Stats   GatherStats   `msgpack:"stats"`
	Soup    *TriangleSoup `msgpack:"soup"`
}

func MarshalSoup(soup *TriangleSoup, stats GatherStats) ([]byte, error) {
	return msgpack.Marshal(&soupSnapshot{Version: soupCacheVersion, Stats: stats, Soup: soup})
}

func UnmarshalSoup(data []byte) (*TriangleSoup, GatherStats, error) {
	snap := &soupSnapshot{}
	if err := msgpack.Unmarshal(data, snap); err != nil {
		return nil, GatherStats{}, fmt.Errorf("decode soup: %w", err)
	}
	if snap.Version != soupCacheVersion {
		return nil, GatherStats{}, fmt.Errorf("decode soup: version %d, want %d", snap.Version, soupCacheVersion)
	}
	if snap.Soup == nil {
		snap.Soup = &TriangleSoup{}
	}
	return snap.Soup, snap.Stats, nil
}

// SaveSoup stores a gathered soup so the scene need not be walked again
// for the next bake.
func SaveSoup(path string, soup *TriangleSoup, stats GatherStats) error {
	data, err := MarshalSoup(soup, stats)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func LoadSoup(path string) (*TriangleSoup, GatherStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, GatherStats{}, err
	}
	return UnmarshalSoup(data)
}

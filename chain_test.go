package fat32

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usbfat/fat32/internal/fixture"
)

func nullLogger() logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

// newTestEngine returns an engine on the volume of b.
func newTestEngine(t *testing.T, b *fixture.Builder) (*clusterEngine, *fixture.MemDevice) {
	t.Helper()
	rr, err := ParseReservedRegion(b.Sector(b.Volume.PartitionLBA))
	require.NoError(t, err)

	dev := b.Device()
	return &clusterEngine{
		dev:          dev,
		rr:           rr,
		partitionLBA: b.Volume.PartitionLBA,
		log:          nullLogger(),
	}, dev
}

func fatValue(b *fixture.Builder, c uint32) uint32 {
	return binary.LittleEndian.Uint32(b.FAT()[c*4:])
}

func Test_fatEntry_Value(t *testing.T) {
	tests := []struct {
		name string
		e    fatEntry
		want uint32
	}{
		{name: "plain", e: 0x00000123, want: 0x123},
		{name: "top bits are masked", e: 0xF0000123, want: 0x123},
		{name: "end of chain", e: 0xFFFFFFFF, want: 0x0FFFFFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.Value(); got != tt.want {
				t.Errorf("fatEntry.Value() = 0x%X, want 0x%X", got, tt.want)
			}
		})
	}
}

func Test_fatEntry_Kinds(t *testing.T) {
	tests := []struct {
		name     string
		e        fatEntry
		free     bool
		reserved bool
		bad      bool
		eof      bool
		next     bool
	}{
		{name: "free", e: 0, free: true},
		{name: "free with reserved bits", e: 0x30000000, free: true},
		{name: "reserved", e: 1, reserved: true},
		{name: "next cluster", e: 0x0000ABCD, next: true},
		{name: "bad", e: 0x0FFFFFF7, bad: true},
		{name: "lowest end of chain", e: 0x0FFFFFF8, eof: true},
		{name: "written end of chain", e: 0x0FFFFFFF, eof: true},
		{name: "end of chain with top bits", e: 0xFFFFFFFF, eof: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.IsFree(); got != tt.free {
				t.Errorf("fatEntry.IsFree() = %v, want %v", got, tt.free)
			}
			if got := tt.e.IsReserved(); got != tt.reserved {
				t.Errorf("fatEntry.IsReserved() = %v, want %v", got, tt.reserved)
			}
			if got := tt.e.IsBad(); got != tt.bad {
				t.Errorf("fatEntry.IsBad() = %v, want %v", got, tt.bad)
			}
			if got := tt.e.IsEOF(); got != tt.eof {
				t.Errorf("fatEntry.IsEOF() = %v, want %v", got, tt.eof)
			}
			if got := tt.e.IsNextCluster(); got != tt.next {
				t.Errorf("fatEntry.IsNextCluster() = %v, want %v", got, tt.next)
			}
		})
	}
}

func TestClusterEngine_addresses(t *testing.T) {
	e, _ := newTestEngine(t, fixture.Scenario())

	assert.Equal(t, uint32(2080), e.fatStart())
	assert.Equal(t, uint32(2080+2*972), e.firstDataLBA())
	assert.Equal(t, uint32(65), e.maxCluster())

	assert.Equal(t, fatSlot{cluster: 2, lba: 2080, index: 2}, e.slotOf(2))
	assert.Equal(t, fatSlot{cluster: 130, lba: 2081, index: 2}, e.slotOf(130))

	assert.Equal(t, uint32(4024), e.clusterLBA(2))
	assert.Equal(t, uint32(4024+3*8), e.clusterLBA(5))
}

func TestClusterEngine_maxCluster(t *testing.T) {
	tests := []struct {
		name   string
		change func(rr *ReservedRegion)
		want   uint32
	}{
		{name: "cluster count", change: func(rr *ReservedRegion) {}, want: 65},
		{name: "unknown total sectors", change: func(rr *ReservedRegion) { rr.TotalSectors = 0 }, want: 128*972 - 1},
		{name: "more clusters than FAT entries", change: func(rr *ReservedRegion) { rr.TotalSectors = 0xFFFFFFFF }, want: 128*972 - 1},
		{
			name: "single FAT sector",
			change: func(rr *ReservedRegion) {
				rr.SectorsPerFAT = 1
				rr.TotalSectors = 0xFFFFFFFF
			},
			want: 127,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, fixture.Scenario())
			tt.change(&e.rr)
			if got := e.maxCluster(); got != tt.want {
				t.Errorf("clusterEngine.maxCluster() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClusterEngine_walk_linkBeyondFAT(t *testing.T) {
	b := fixture.Scenario()
	b.SetFAT(7, 200)
	e, dev := newTestEngine(t, b)
	e.rr.SectorsPerFAT = 1
	e.rr.TotalSectors = 0xFFFFFFFF

	_, err := e.walk(7)
	assert.True(t, errors.Is(err, ErrDecode), "walk() error = %v", err)
	dev.FailRead = func(lba uint32, _ uint16) bool { return lba != 2080 }
	_, err = e.walk(7)
	assert.True(t, errors.Is(err, ErrDecode), "only the FAT sector is read, error = %v", err)
}

func TestClusterEngine_walk(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(b *fixture.Builder)
		start   uint32
		want    ClusterChain
		wantErr error
	}{
		{name: "root", start: 2, want: ClusterChain{2}},
		{name: "two clusters", start: 5, want: ClusterChain{5, 6}},
		{name: "reserved start", start: 1, wantErr: ErrDecode},
		{name: "start beyond the volume", start: 66, wantErr: ErrDecode},
		{
			name:    "link to a free cluster",
			prepare: func(b *fixture.Builder) { b.SetFAT(7, 0) },
			start:   7,
			wantErr: ErrDecode,
		},
		{
			name:    "bad cluster",
			prepare: func(b *fixture.Builder) { b.SetFAT(7, 0x0FFFFFF7) },
			start:   7,
			wantErr: ErrDecode,
		},
		{
			name:    "link beyond the volume",
			prepare: func(b *fixture.Builder) { b.SetFAT(7, 1000) },
			start:   7,
			wantErr: ErrDecode,
		},
		{
			name: "loop",
			prepare: func(b *fixture.Builder) {
				b.SetFAT(7, 8)
				b.SetFAT(8, 7)
			},
			start:   7,
			wantErr: ErrDecode,
		},
		{
			name: "end of chain with reserved bits",
			prepare: func(b *fixture.Builder) {
				b.SetFAT(7, 0x10000008)
				b.SetFAT(8, 0xFFFFFFF8)
			},
			start: 7,
			want:  ClusterChain{7, 8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fixture.Scenario()
			if tt.prepare != nil {
				tt.prepare(b)
			}
			e, _ := newTestEngine(t, b)

			got, err := e.walk(tt.start)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("clusterEngine.walk() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("clusterEngine.walk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClusterEngine_allocate(t *testing.T) {
	b := fixture.Scenario()
	e, _ := newTestEngine(t, b)
	before := b.FAT()

	chain, err := e.allocate(5)
	require.NoError(t, err)
	assert.Equal(t, ClusterChain{7, 8, 9, 10, 11}, chain)

	for _, c := range chain {
		assert.Zero(t, binary.LittleEndian.Uint32(before[c*4:]), "cluster %d was not free", c)
	}

	walked, err := e.walk(chain[0])
	require.NoError(t, err)
	assert.Equal(t, chain, walked)
	assert.Equal(t, uint32(eocMarker), fatValue(b, chain[len(chain)-1]))

	// The second FAT mirrors the first one.
	v := b.Volume
	fat2 := b.Bytes()[int(v.FATStart()+v.SectorsPerFAT)*512:]
	assert.True(t, bytes.Equal(b.FAT(), fat2[:len(b.FAT())]))
}

func TestClusterEngine_allocate_fragmented(t *testing.T) {
	b := fixture.Scenario()
	b.SetFAT(8, 0x0FFFFFFF)
	b.SetFAT(10, 0x0FFFFFFF)
	e, _ := newTestEngine(t, b)

	chain, err := e.allocate(3)
	require.NoError(t, err)
	assert.Equal(t, ClusterChain{7, 9, 11}, chain)
	assert.Equal(t, uint32(9), fatValue(b, 7))
	assert.Equal(t, uint32(11), fatValue(b, 9))
	assert.Equal(t, uint32(eocMarker), fatValue(b, 11))
}

func TestClusterEngine_allocate_keepsReservedBits(t *testing.T) {
	b := fixture.Scenario()
	b.SetFAT(7, 0xA0000000)
	e, _ := newTestEngine(t, b)

	_, err := e.allocate(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xAFFFFFFF), fatValue(b, 7))
}

func TestClusterEngine_allocate_exhausted(t *testing.T) {
	b := fixture.Scenario()
	b.Fill(2)
	e, dev := newTestEngine(t, b)
	before := b.FAT()

	chain, err := e.allocate(3)
	assert.True(t, errors.Is(err, ErrAllocationExhausted), "error = %v", err)
	assert.Nil(t, chain)
	assert.Equal(t, before, b.FAT())
	assert.Zero(t, dev.Writes)

	// The remaining two are still usable.
	chain, err = e.allocate(2)
	require.NoError(t, err)
	assert.Equal(t, ClusterChain{64, 65}, chain)
}

func TestClusterEngine_allocate_zero(t *testing.T) {
	e, dev := newTestEngine(t, fixture.Scenario())

	chain, err := e.allocate(0)
	assert.NoError(t, err)
	assert.Empty(t, chain)
	assert.Zero(t, dev.Reads)
}

func TestClusterEngine_allocate_rollbackOnWriteFailure(t *testing.T) {
	b := fixture.Scenario()
	e, dev := newTestEngine(t, b)
	before := b.FAT()

	// Fail the primary FAT write of the second link once.
	writes := 0
	dev.FailWrite = func(lba uint32, count uint16) bool {
		writes++
		return writes == 3
	}

	_, err := e.allocate(3)
	assert.True(t, errors.Is(err, ErrTransport), "error = %v", err)
	assert.True(t, errors.Is(err, fixture.ErrInjected), "error = %v", err)
	assert.Equal(t, before, b.FAT())
}

func TestClusterEngine_release(t *testing.T) {
	b := fixture.Scenario()
	e, _ := newTestEngine(t, b)
	before := b.FAT()

	chain, err := e.allocate(4)
	require.NoError(t, err)
	require.NotEqual(t, before, b.FAT())

	require.NoError(t, e.release(chain))
	assert.Equal(t, before, b.FAT())
}

func TestClusterEngine_runs(t *testing.T) {
	e, _ := newTestEngine(t, fixture.Scenario())

	tests := []struct {
		name  string
		chain ClusterChain
		want  [][2]uint32
	}{
		{name: "empty", chain: nil, want: nil},
		{name: "consecutive", chain: ClusterChain{5, 6, 7}, want: [][2]uint32{{5, 3}}},
		{name: "fragmented", chain: ClusterChain{5, 6, 9, 3}, want: [][2]uint32{{5, 2}, {9, 1}, {3, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.runs(tt.chain); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("clusterEngine.runs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClusterEngine_runs_transferLimit(t *testing.T) {
	e, _ := newTestEngine(t, fixture.Scenario())

	chain := make(ClusterChain, 9000)
	for i := range chain {
		chain[i] = uint32(i + 2)
	}
	runs := e.runs(chain)

	// 8 sectors per cluster, so one READ(10) covers at most 8191 clusters.
	require.Len(t, runs, 2)
	assert.Equal(t, [2]uint32{2, 8191}, runs[0])
	assert.Equal(t, [2]uint32{8193, 809}, runs[1])
}

func TestClusterEngine_readWriteChain(t *testing.T) {
	b := fixture.Scenario()
	e, dev := newTestEngine(t, b)

	data, err := e.readChain(ClusterChain{5, 6})
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Reads)
	assert.Equal(t, fixture.GuideContent, string(data[:len(fixture.GuideContent)]))

	payload := bytes.Repeat([]byte{0x5A}, 4096+100)
	require.NoError(t, e.writeChain(ClusterChain{9, 7}, payload))
	assert.Equal(t, payload[:4096], b.Cluster(9))
	assert.Equal(t, payload[4096:], b.Cluster(7)[:100])
	assert.Equal(t, make([]byte, 4096-100), b.Cluster(7)[100:])

	err = e.writeChain(ClusterChain{9}, payload)
	assert.True(t, errors.Is(err, ErrAllocationExhausted), "error = %v", err)
}

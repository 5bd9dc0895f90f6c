package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/ratelimiter"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

const (
	btcHash  = "00000000000000000001a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f7"
	btcHash2 = "000000000000000000028c6e4c1d5d2b7b0e9a3f1c2d4e5f60718293a4b5c6d7"
	ethHash  = "0x88e96d4537bea4d9c05d12549907b32561d3bf31f45aae734cdc119f13406cb6"
)

// fakeAPI serves canned JSON bodies by request path and counts hits.
type fakeAPI struct {
	t      *testing.T
	mu     sync.Mutex
	bodies map[string]any
	hits   map[string]int
	agents []string
	server *httptest.Server
}

func newFakeAPI(t *testing.T, bodies map[string]any) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, bodies: bodies, hits: make(map[string]int)}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits[r.URL.Path]++
	f.agents = append(f.agents, r.UserAgent())

	body, ok := f.bodies[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if status, isStatus := body.(int); isStatus {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(f.t, json.NewEncoder(w).Encode(body))
}

func (f *fakeAPI) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeAPI) Agents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.agents)
}

func (f *fakeAPI) TotalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.hits {
		total += n
	}
	return total
}

func (f *fakeAPI) URL() string { return f.server.URL }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(t *testing.T) *chainstate.Store {
	t.Helper()
	s, err := chainstate.New(zap.NewNop().Sugar())
	require.NoError(t, err)
	return s
}

func nopLog() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func requireState(t *testing.T, store *chainstate.Store, src registry.SourceID, chain registry.ChainID, hash string, height uint64) {
	t.Helper()
	st, ok := store.Get(src, chain)
	require.True(t, ok, "no state for %s/%s", src, chain)
	assert.Equal(t, hash, st.Hash)
	assert.Equal(t, height, st.Height)
}

func TestBase_Validation(t *testing.T) {
	t.Parallel()

	_, err := newBase(registry.BitGo, []registry.ChainID{registry.Bitcoin}, nil, options{})
	require.ErrorContains(t, err, "invalid logger")

	_, err = newBase(registry.BitGo, nil, nopLog(), options{})
	require.ErrorContains(t, err, "no chains configured")
}

func TestBase_SweepFetchesDueChainsOnce(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b, err := newBase(registry.BitGo, []registry.ChainID{registry.Bitcoin, registry.Ethereum}, nopLog(),
		buildOptions([]Option{WithLimiterOptions(ratelimiter.WithClock(clock.Now))}))
	require.NoError(t, err)

	store := newStore(t)
	var calls atomic.Int32
	fetch := func(_ context.Context, chain registry.ChainID) (chainstate.ChainState, error) {
		calls.Add(1)
		return chainstate.ChainState{Hash: string(chain), Height: 1}, nil
	}

	require.NoError(t, b.sweep(t.Context(), store, fetch))
	require.Equal(t, int32(2), calls.Load())

	// Nothing is due right after a check.
	require.NoError(t, b.sweep(t.Context(), store, fetch))
	require.Equal(t, int32(2), calls.Load())

	// Ethereum (12s blocks) goes stale after 45s, Bitcoin after 300s.
	clock.Advance(45 * time.Second)
	require.NoError(t, b.sweep(t.Context(), store, fetch))
	require.Equal(t, int32(3), calls.Load())
}

func TestBase_SweepSkipsFailedChains(t *testing.T) {
	t.Parallel()
	b, err := newBase(registry.BitGo, []registry.ChainID{registry.Bitcoin, registry.Ethereum}, nopLog(), options{})
	require.NoError(t, err)

	store := newStore(t)
	fetch := func(_ context.Context, chain registry.ChainID) (chainstate.ChainState, error) {
		if chain == registry.Bitcoin {
			return chainstate.ChainState{}, ErrNoBlocks
		}
		return chainstate.ChainState{Hash: "0xab", Height: 7}, nil
	}

	require.NoError(t, b.sweep(t.Context(), store, fetch))

	_, ok := store.Get(registry.BitGo, registry.Bitcoin)
	require.False(t, ok)
	requireState(t, store, registry.BitGo, registry.Ethereum, "0xab", 7)
}

func TestBase_SweepStopsOnCancel(t *testing.T) {
	t.Parallel()
	b, err := newBase(registry.BitGo, []registry.ChainID{registry.Bitcoin, registry.Ethereum}, nopLog(), options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err = b.sweep(ctx, newStore(t), func(context.Context, registry.ChainID) (chainstate.ChainState, error) {
		t.Fatal("fetch must not be called")
		return chainstate.ChainState{}, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBase_SupportedChainsIsCopy(t *testing.T) {
	t.Parallel()
	b, err := newBase(registry.BitGo, []registry.ChainID{registry.Bitcoin}, nopLog(), options{})
	require.NoError(t, err)

	chains := b.SupportedChains()
	chains[0] = registry.Doge
	require.Equal(t, []registry.ChainID{registry.Bitcoin}, b.SupportedChains())
	require.Equal(t, []registry.SourceID{registry.BitGo}, b.SupportedSources())
}

func TestParseSourceIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []registry.SourceID
		wantErr string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "bitgo", want: []registry.SourceID{registry.BitGo}},
		{
			name:  "spaces and duplicates",
			input: " bitgo, mempoolspace ,bitgo,,",
			want:  []registry.SourceID{registry.BitGo, registry.MempoolSpace},
		},
		{name: "unknown", input: "bitgo,etherscan", wantErr: `unknown source "etherscan"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSourceIDs(tt.input)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOptions_urlFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		baseURL string
		def     string
		want    string
	}{
		{
			name: "no override",
			def:  "https://mempool.space/testnet/api/blocks/",
			want: "https://mempool.space/testnet/api/blocks/",
		},
		{
			name:    "host replaced",
			baseURL: "http://127.0.0.1:8080/",
			def:     "https://mempool.space/testnet/api/blocks/",
			want:    "http://127.0.0.1:8080/testnet/api/blocks/",
		},
		{
			name:    "query kept",
			baseURL: "http://proxy",
			def:     "https://api.blockchain.info/v2/eth/data/blocks?size=1",
			want:    "http://proxy/v2/eth/data/blocks?size=1",
		},
		{
			name:    "no path",
			baseURL: "http://proxy",
			def:     "https://example.com",
			want:    "http://proxy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := buildOptions([]Option{WithBaseURL(tt.baseURL)})
			require.Equal(t, tt.want, o.urlFor(tt.def))
		})
	}
}

func TestNewState(t *testing.T) {
	t.Parallel()

	st, err := newState(registry.Bitcoin, btcHash, 800_000)
	require.NoError(t, err)
	require.Equal(t, chainstate.ChainState{Hash: btcHash, Height: 800_000}, st)

	// Upper case hex is canonicalized.
	st, err = newState(registry.Litecoin, "00000000000000000001A2B3C4D5E6F708192A3B4C5D6E7F8091A2B3C4D5E6F7", 1)
	require.NoError(t, err)
	require.Equal(t, btcHash, st.Hash)

	_, err = newState(registry.Bitcoin, "", 1)
	require.Error(t, err)

	_, err = newState(registry.Bitcoin, btcHash+"00", 1)
	require.Error(t, err)

	// Truncated hashes are rejected, not zero-padded.
	_, err = newState(registry.Bitcoin, btcHash[2:], 1)
	require.Error(t, err)
	_, err = newState(registry.Dash, "abc", 1)
	require.Error(t, err)

	_, err = newState(registry.Ethereum, "0xabc", 2)
	require.Error(t, err)

	st, err = newState(registry.Ethereum, "0x88E96D4537BEA4D9C05D12549907B32561D3BF31F45AAE734CDC119F13406CB6", 2)
	require.NoError(t, err)
	require.Equal(t, ethHash, st.Hash)

	st, err = newState(registry.Tezos, "BMJ8iU2rZm3ddjsJ5YuUvaeTS4d2LPV1akM4rHpTFuVBRMeTnt3", 3)
	require.NoError(t, err)
	require.Equal(t, "BMJ8iU2rZm3ddjsJ5YuUvaeTS4d2LPV1akM4rHpTFuVBRMeTnt3", st.Hash)
}

func TestJSONHeight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    uint64
		wantErr bool
	}{
		{input: `{"h":19000000}`, want: 19_000_000},
		{input: `{"h":"19000000"}`, want: 19_000_000},
		{input: `{"h":"0x121eac0"}`, want: 19_000_000},
		{input: `{}`, want: 0},
		{input: `{"h":null}`, wantErr: true},
		{input: `{"h":-1}`, wantErr: true},
		{input: `{"h":"tip"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			var v struct {
				H jsonHeight `json:"h"`
			}
			err := json.Unmarshal([]byte(tt.input), &v)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, uint64(v.H))
		})
	}
}

func chainstateOf(hash string, height uint64) chainstate.ChainState {
	return chainstate.ChainState{Hash: hash, Height: height}
}

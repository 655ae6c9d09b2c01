package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsniffer/internal/hls"
	"flowsniffer/internal/rules"
	"flowsniffer/internal/stream"
	"flowsniffer/pkg/traffic"
)

type fixture struct {
	mu        sync.Mutex
	state     *stream.State
	snaps     []stream.Snapshot
	manifests []ManifestInfo
	h         *Handler
}

func newFixture(ignore ...rules.Condition) *fixture {
	f := &fixture{}
	f.state = stream.NewState(stream.NewBuilder(""), func(s stream.Snapshot) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.snaps = append(f.snaps, s)
	})
	f.h = New(Config{
		State:         f.state,
		Rules:         rules.New(ignore),
		BodyTimeoutMS: 1000,
		OnManifest: func(m ManifestInfo) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.manifests = append(f.manifests, m)
		},
	})
	return f
}

func (f *fixture) handle(url string, body traffic.BodyFunc) {
	ex := traffic.NewExchange("id", url)
	ex.Body = body
	f.h.Handle(context.Background(), ex)
}

func (f *fixture) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

func text(s string) traffic.BodyFunc { return traffic.StaticBody(s, false) }

func TestScenarioPrimaryManifest(t *testing.T) {
	f := newFixture()
	f.handle("https://h/a.m3u8", text("#EXT-X-STREAM-INF:BANDWIDTH=1\n"))

	d := f.state.Descriptor()
	assert.Equal(t, "https://h/a.m3u8", d.PrimaryURL)
	assert.Empty(t, d.SecondaryURL)
	assert.Equal(t, "flowdownloader -u https://h/a.m3u8", f.state.Command())
}

func TestScenarioSecondaryWithKey(t *testing.T) {
	f := newFixture()
	f.handle("https://h/b.m3u8", text("#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/key.php\",IV=0x1A\n"))

	d := f.state.Descriptor()
	assert.Equal(t, "https://h/b.m3u8", d.SecondaryURL)
	assert.Equal(t, "0x1A", d.IV)
	assert.Equal(t, "https://h/key.php", f.state.PendingKeyURI())

	f.handle("https://h/key.php", traffic.StaticBody("a2V5Ynl0ZXM=", true))

	d = f.state.Descriptor()
	assert.Equal(t, "a2V5Ynl0ZXM=", d.Key)
	assert.Empty(t, f.state.PendingKeyURI())
	assert.Equal(t, `flowdownloader -k "a2V5Ynl0ZXM=" -s -u https://h/b.m3u8`, f.state.Command())
}

func TestScenarioUnrelatedExchange(t *testing.T) {
	f := newFixture()
	f.handle("https://h/seg0.ts", text("#EXT-X-STREAM-INF:"))
	f.handle("https://h/key.php", traffic.StaticBody("a2V5Ynl0ZXM=", true))

	assert.Zero(t, f.count())
	assert.Equal(t, stream.Descriptor{}, f.state.Descriptor())

	f.state.Expect("https://h/key.php")
	f.handle("https://h/other.php", text("x"))
	assert.Zero(t, f.count())
}

func TestKeyCorrelationOneShot(t *testing.T) {
	f := newFixture()
	f.handle("https://h/b.m3u8", text("#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/key.php\"\n"))
	f.handle("https://h/key.php", text("first-key-bytes!"))
	first := f.state.Descriptor().Key

	f.handle("https://h/key.php", text("second-key-byte!"))
	assert.Equal(t, first, f.state.Descriptor().Key)
}

func TestKeyTextTransportIsEncoded(t *testing.T) {
	f := newFixture()
	f.handle("https://h/b.m3u8", text("#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/key.php\"\n"))
	f.handle("https://h/key.php", text("keybytes"))
	assert.Equal(t, "a2V5Ynl0ZXM=", f.state.Descriptor().Key)
}

func TestKeyFetchFailureIsNotRetried(t *testing.T) {
	f := newFixture()
	f.handle("https://h/b.m3u8", text("#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/key.php\"\n"))
	before := f.count()

	f.handle("https://h/key.php", traffic.FailingBody(errors.New("no resource with given identifier")))
	assert.Empty(t, f.state.Descriptor().Key)
	assert.Empty(t, f.state.PendingKeyURI())

	f.handle("https://h/key.php", traffic.StaticBody("a2V5Ynl0ZXM=", true))
	assert.Empty(t, f.state.Descriptor().Key)
	assert.Equal(t, before, f.count())
}

func TestManifestBodyFailureWithholdsMutation(t *testing.T) {
	f := newFixture()
	f.handle("https://h/a.m3u8", traffic.FailingBody(errors.New("boom")))
	f.handle("https://h/a.m3u8", traffic.StaticBody("%%%", true))
	assert.Zero(t, f.count())
	assert.Empty(t, f.manifests)
}

func TestVersionThenKeySetsSecondaryOnce(t *testing.T) {
	f := newFixture()
	f.handle("https://h/b.m3u8", text("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/k\",IV=0x01\n"))

	var secondaryUpdates int
	for _, s := range f.snaps {
		if s.Field == stream.FieldSecondaryURL {
			secondaryUpdates++
		}
	}
	assert.Equal(t, 1, secondaryUpdates)
	assert.Equal(t, "https://h/b.m3u8", f.state.Descriptor().SecondaryURL)
	assert.Equal(t, "https://h/k", f.state.PendingKeyURI())
	assert.Equal(t, "0x01", f.state.Descriptor().IV)
}

func TestVersionOnlyIsTentativeSecondary(t *testing.T) {
	f := newFixture()
	f.handle("https://h/audio.m3u8?sig=1", text("#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:4,\nseg.aac\n"))

	assert.Equal(t, "https://h/audio.m3u8?sig=1", f.state.Descriptor().SecondaryURL)
	assert.Equal(t, "flowdownloader -s -u https://h/audio.m3u8?sig=1", f.state.Command())
}

func TestUnrecognizedManifestIgnored(t *testing.T) {
	f := newFixture()
	f.handle("https://h/x.m3u8", text("#EXTM3U\n#EXTINF:4,\nseg.ts\n"))
	assert.Zero(t, f.count())
	assert.Empty(t, f.manifests)
}

func TestLastSeenKeyURIWins(t *testing.T) {
	f := newFixture()
	f.handle("https://h/v1.m3u8", text("#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/k1\"\n"))
	f.handle("https://h/v2.m3u8", text("#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/k2\"\n"))

	f.handle("https://h/k1", text("stale-key-bytes!"))
	assert.Empty(t, f.state.Descriptor().Key)

	f.handle("https://h/k2", text("keybytes"))
	assert.Equal(t, "a2V5Ynl0ZXM=", f.state.Descriptor().Key)
	assert.Equal(t, "https://h/v2.m3u8", f.state.Descriptor().SecondaryURL)
}

func TestPrimaryAndSecondaryTogether(t *testing.T) {
	f := newFixture()
	f.handle("https://h/master.m3u8", text("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360\nlow.m3u8\n"))
	f.handle("https://h/low.m3u8", text("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/key\",IV=0x2\n"))
	f.handle("https://h/key", traffic.StaticBody("a2V5Ynl0ZXM=", true))

	assert.Equal(t, `flowdownloader -k "a2V5Ynl0ZXM=" -u https://h/master.m3u8`, f.state.Command())
	d := f.state.Descriptor()
	assert.Equal(t, "https://h/low.m3u8", d.SecondaryURL)
	assert.Equal(t, "0x2", d.IV)

	require.NotEmpty(t, f.manifests)
	assert.Equal(t, hls.RolePrimary, f.manifests[0].Result.Role)
	require.Len(t, f.manifests[0].Variants, 1)
	assert.Equal(t, "low.m3u8", f.manifests[0].Variants[0].URI)
}

func TestManifestRefererPassedToHook(t *testing.T) {
	f := newFixture()
	ex := traffic.NewExchange("1", "https://h/a.m3u8")
	ex.Headers.Set("Referer", "https://site/watch")
	ex.Body = text("#EXT-X-STREAM-INF:BANDWIDTH=1\n")
	f.h.Handle(context.Background(), ex)

	require.Len(t, f.manifests, 1)
	assert.Equal(t, "https://site/watch", f.manifests[0].Referer)
}

func TestNavigationResetsState(t *testing.T) {
	f := newFixture()
	f.handle("https://h/b.m3u8", text("#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/key.php\",IV=0x1\n"))

	nav := traffic.NewExchange("L1", "https://site/next")
	nav.Navigation = true
	f.h.Handle(context.Background(), nav)

	assert.Equal(t, stream.Descriptor{}, f.state.Descriptor())
	assert.Empty(t, f.state.PendingKeyURI())

	f.handle("https://h/key.php", text("keybytes"))
	assert.Empty(t, f.state.Descriptor().Key)
}

func TestFilteredManifest(t *testing.T) {
	f := newFixture(rules.Condition{Mode: "prefix", Pattern: "https://ads/"})
	f.handle("https://ads/preroll.m3u8", text("#EXT-X-STREAM-INF:BANDWIDTH=1\n"))
	assert.Zero(t, f.count())
}

func TestRunPreservesArrivalOrder(t *testing.T) {
	f := newFixture()
	in := make(chan *traffic.Exchange, 4)

	mk := func(url string, body traffic.BodyFunc) *traffic.Exchange {
		ex := traffic.NewExchange(url, url)
		ex.Body = body
		return ex
	}
	in <- mk("https://h/b.m3u8", text("#EXT-X-KEY:METHOD=AES-128,URI=\"https://h/key.php\"\n"))
	in <- mk("https://h/key.php", traffic.StaticBody("a2V5Ynl0ZXM=", true))
	in <- mk("https://h/a.m3u8", text("#EXT-X-STREAM-INF:BANDWIDTH=1\n"))
	close(in)

	done := make(chan struct{})
	go func() {
		f.h.Run(context.Background(), in)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not stop after input closed")
	}

	assert.Equal(t, `flowdownloader -k "a2V5Ynl0ZXM=" -u https://h/a.m3u8`, f.state.Command())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.h.Run(ctx, make(chan *traffic.Exchange))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not stop after cancel")
	}
}

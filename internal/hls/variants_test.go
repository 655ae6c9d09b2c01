package hls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantsMaster(t *testing.T) {
	body := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1280000,RESOLUTION=1280x720\n" +
		"hd/index.m3u8\n" +
		"#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=640000,RESOLUTION=640x360\n" +
		"https://cdn/sd/index.m3u8\n"

	vs := Variants(body)
	require.Len(t, vs, 2)
	assert.Equal(t, Variant{Bandwidth: 1280000, Resolution: "1280x720", URI: "hd/index.m3u8"}, vs[0])
	assert.Equal(t, "https://cdn/sd/index.m3u8", vs[1].URI)
}

func TestVariantsNotMaster(t *testing.T) {
	assert.Nil(t, Variants("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\nseg.ts\n"))
	assert.Nil(t, Variants("not a playlist"))
}

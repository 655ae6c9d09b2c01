package traffic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://h/a.m3u8", "https://h/a.m3u8"},
		{"https://h/a.m3u8?token=1", "https://h/a.m3u8"},
		{"https://h/a.m3u8?x=1?y=2", "https://h/a.m3u8"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripQuery(tt.in), tt.in)
	}
}

func TestHeaderCaseInsensitive(t *testing.T) {
	h := make(Header)
	h.Set("Referer", "https://site/")
	assert.Equal(t, "https://site/", h.Get("referer"))
	h.Del("REFERER")
	assert.Empty(t, h.Get("Referer"))

	var nilHeader Header
	assert.Empty(t, nilHeader.Get("x"))
}

func TestExchangeText(t *testing.T) {
	ctx := context.Background()

	ex := NewExchange("1", "https://h/a.m3u8")
	ex.Body = StaticBody("I0VYVE0zVQo=", true)
	text, err := ex.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", text)

	ex.Body = StaticBody("#EXTM3U\n", false)
	text, err = ex.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", text)

	ex.Body = StaticBody("%%%", true)
	_, err = ex.Text(ctx)
	assert.Error(t, err)

	boom := errors.New("boom")
	ex.Body = FailingBody(boom)
	_, err = ex.Text(ctx)
	assert.ErrorIs(t, err, boom)

	ex.Body = nil
	_, err = ex.Text(ctx)
	assert.ErrorIs(t, err, ErrNoBody)
}

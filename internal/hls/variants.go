package hls

import (
	"strings"

	"github.com/grafov/m3u8"
)

// Variant 主清单中的一个码率/分辨率选项
type Variant struct {
	Bandwidth  uint32 `json:"bandwidth"`
	Resolution string `json:"resolution,omitempty"`
	URI        string `json:"uri"`
}

// Variants 尽力解码主清单的变体列表，解析失败或非主清单时返回 nil
func Variants(body string) []Variant {
	pl, listType, err := m3u8.DecodeFrom(strings.NewReader(body), false)
	if err != nil || listType != m3u8.MASTER {
		return nil
	}
	master, ok := pl.(*m3u8.MasterPlaylist)
	if !ok {
		return nil
	}
	out := make([]Variant, 0, len(master.Variants))
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		out = append(out, Variant{
			Bandwidth:  v.Bandwidth,
			Resolution: v.Resolution,
			URI:        v.URI,
		})
	}
	return out
}

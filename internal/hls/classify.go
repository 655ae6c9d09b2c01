package hls

import (
	"strings"

	"flowsniffer/pkg/traffic"
)

// Role 清单在流中的角色
type Role int

const (
	RoleUndetermined Role = iota
	RolePrimary
	RoleSecondary
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	default:
		return "undetermined"
	}
}

// Result 单个清单的判定结果
type Result struct {
	Role Role
	// Decisive 终止扫描的标签，未遇到时为 TagOther
	Decisive TagKind
	// Tentative 扫描过程中出现过版本标签
	Tentative bool

	KeyURI    string
	HasKeyURI bool
	IV        string
	HasIV     bool
}

// IsManifestURL 去掉查询串后以 .m3u8 结尾
func IsManifestURL(u string) bool {
	return strings.HasSuffix(traffic.StripQuery(u), ".m3u8")
}

// Classify 逐行扫描清单，遇到决定性标签即停止
func Classify(body string) Result {
	var res Result
	for _, line := range Tokenize(body) {
		switch line.Kind {
		case TagKey:
			res.Role = RoleSecondary
			res.Decisive = TagKey
			res.KeyURI, res.HasKeyURI = line.Attrs.Quoted("URI")
			res.IV, res.HasIV = line.Attrs.Token("IV")
			return res
		case TagStreamInf:
			res.Role = RolePrimary
			res.Decisive = TagStreamInf
			return res
		case TagVersion:
			res.Tentative = true
			res.Role = RoleSecondary
		}
	}
	return res
}

package cdp

import (
	"context"
	"encoding/json"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/tidwall/gjson"

	"flowsniffer/pkg/traffic"
)

// ToNeutralExchange 将 requestWillBeSent 事件转换为中立 Exchange 模型。
// 可选字段（type、frameId）按 JSON 路径读取。
func ToNeutralExchange(ev *network.RequestWillBeSentReply) *traffic.Exchange {
	ex := traffic.NewExchange(string(ev.RequestID), ev.Request.URL)
	ex.Method = ev.Request.Method

	raw, err := json.Marshal(ev)
	if err != nil {
		return ex
	}
	doc := gjson.ParseBytes(raw)
	ex.ResourceType = doc.Get("type").String()
	ex.FrameID = doc.Get("frameId").String()

	// 处理 Header
	doc.Get("request.headers").ForEach(func(k, v gjson.Result) bool {
		ex.Headers.Set(k.String(), v.String())
		return true
	})
	return ex
}

// ApplyResponse 用 responseReceived 事件补充状态码与 MIME
func ApplyResponse(ex *traffic.Exchange, ev *network.ResponseReceivedReply) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	doc := gjson.ParseBytes(raw)
	ex.StatusCode = int(doc.Get("response.status").Int())
	ex.MimeType = doc.Get("response.mimeType").String()
	if ex.ResourceType == "" {
		ex.ResourceType = doc.Get("type").String()
	}
}

// IsNavigation 目标主框架的文档请求（主框架 ID 与目标 ID 相同）
func IsNavigation(ex *traffic.Exchange, targetID string) bool {
	return ex.ResourceType == string(network.ResourceTypeDocument) && ex.FrameID != "" && ex.FrameID == targetID
}

// ResponseBody 返回通过 Network.getResponseBody 惰性获取响应体的 BodyFunc
func ResponseBody(client *cdp.Client, id network.RequestID) traffic.BodyFunc {
	return func(ctx context.Context) (string, bool, error) {
		reply, err := client.Network.GetResponseBody(ctx, network.NewGetResponseBodyArgs(id))
		if err != nil {
			return "", false, err
		}
		return reply.Body, reply.Base64Encoded, nil
	}
}

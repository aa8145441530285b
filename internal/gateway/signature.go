package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/d60-Lab/dineflow/pkg/apperr"
)

// 回调验签方案：header 为 "t=<unix>,v1=<hex hmac-sha256>"，
// 签名内容是 "<t>.<原始报文>"，密钥为共享 webhook secret。

// Sign 对 payload 在 ts 时刻生成签名 header；导出给测试与网关模拟器使用
func Sign(secret []byte, ts time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature 用 payload 校验 header。header 格式错误、摘要不符、
// 时间戳超出容忍窗口均直接拒绝
func VerifySignature(secret []byte, header string, payload []byte, tolerance time.Duration) error {
	if header == "" {
		return apperr.InvalidSignature("missing signature header")
	}

	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return apperr.InvalidSignature("malformed signature header")
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return apperr.InvalidSignature("malformed signature timestamp")
			}
			ts = n
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return apperr.InvalidSignature("incomplete signature header")
	}

	if tolerance > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return apperr.InvalidSignature("signature timestamp outside tolerance")
		}
	}

	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return apperr.InvalidSignature("signature mismatch")
	}
	return nil
}

// Event 网关推送的回调事件
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		SessionID string            `json:"session_id"`
		Metadata  map[string]string `json:"metadata"`
	} `json:"data"`
}

// EventCheckoutCompleted 订单核心唯一消费的事件类型
const EventCheckoutCompleted = "checkout.session.completed"

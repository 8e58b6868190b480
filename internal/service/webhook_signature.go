package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 回调签名头格式：t=<unix 秒>,v1=<hex(hmac-sha256(secret, "t.payload"))>
// 与网关侧的 Stripe 签名方案保持一致。

// signatureTolerance 时间戳偏差上限，超过即视为重放
const signatureTolerance = 5 * time.Minute

// VerifyWebhookSignature 校验回调签名，失败一律拒绝（fail closed）
func VerifyWebhookSignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" {
		return errors.New("缺少签名头")
	}

	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			n, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("签名头时间戳非法: %v", err)
			}
			ts = n
		case "v1":
			sig = kv[1]
		}
	}
	if ts == 0 || sig == "" {
		return errors.New("签名头缺少 t 或 v1 字段")
	}

	diff := now.Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	if diff > int64(signatureTolerance/time.Second) {
		return errors.New("签名时间戳超出容忍范围")
	}

	expected := computeSignature(payload, secret, ts)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return errors.New("签名不匹配")
	}
	return nil
}

// BuildWebhookSignature 按同样的方案生成签名头，测试与联调工具使用
func BuildWebhookSignature(payload []byte, secret string, now time.Time) string {
	ts := now.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature(payload, secret, ts))
}

func computeSignature(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// internal/utils/crypto.go
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// tokenKeyEnv 指定令牌加密密钥的环境变量
// 未设置时令牌按明文落盘
const tokenKeyEnv = "STUDIO_TOKEN_KEY"

func normalizeKey(key string) []byte {
	keyBytes := make([]byte, 32)
	copy(keyBytes, []byte(key))
	return keyBytes
}

// SealToken 用AES-GCM加密账号令牌后base64编码
// 密钥为空时原样返回
func SealToken(plaintext string) (string, error) {
	key := os.Getenv(tokenKeyEnv)
	if key == "" || plaintext == "" {
		return plaintext, nil
	}

	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return "enc:" + base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenToken 解密SealToken的输出
// 无enc:前缀的值视为明文直接返回，兼容未加密的历史数据
func OpenToken(stored string) (string, error) {
	if len(stored) < 4 || stored[:4] != "enc:" {
		return stored, nil
	}

	key := os.Getenv(tokenKeyEnv)
	if key == "" {
		return "", fmt.Errorf("令牌已加密但未设置%s", tokenKeyEnv)
	}

	sealed, err := base64.StdEncoding.DecodeString(stored[4:])
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("密文长度不足")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

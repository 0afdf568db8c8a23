package server

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT 相关配置
const (
	// Session 有效期：10 分钟（一场比赛的时间加余量）
	SessionTTL = 10 * time.Minute

	// Token 签名者
	tokenIssuer = "rocketball-server"
)

// Claims 定义 JWT Claims
type Claims struct {
	PlayerID int32  `json:"player_id"`
	MatchID  string `json:"match_id,omitempty"`
	jwt.RegisteredClaims
}

// signingKey 获取签名密钥
// 优先用配置值，其次环境变量 ROCKETBALL_JWT_SECRET，最后落到开发默认值
func signingKey(configured string) []byte {
	if configured != "" {
		return []byte(configured)
	}
	if secret := os.Getenv("ROCKETBALL_JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	// 开发环境默认密钥，生产环境必须配置
	return []byte("rocketball-dev-secret-change-in-production")
}

// GenerateSessionToken 生成会话 Token
func GenerateSessionToken(secret string, playerID int32, matchID string) (string, error) {
	now := time.Now()
	claims := Claims{
		PlayerID: playerID,
		MatchID:  matchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprintf("player-%d", playerID),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey(secret))
}

// VerifySessionToken 验证并解析 Token，返回 playerID 和 matchID
func VerifySessionToken(secret, tokenString string) (int32, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return signingKey(secret), nil
	})

	if err != nil {
		return 0, "", fmt.Errorf("token parsing failed: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.PlayerID, claims.MatchID, nil
	}

	return 0, "", fmt.Errorf("invalid token")
}

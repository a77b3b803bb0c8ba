package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenSecretMissing 未配置令牌密钥
var ErrTokenSecretMissing = errors.New("token secret is not configured")

// StaffJWTClaims 店员令牌声明
type StaffJWTClaims struct {
	StaffID    string `json:"staff_id"`
	MerchantID string `json:"merchant_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// CustomerJWTClaims 顾客令牌声明
type CustomerJWTClaims struct {
	CustomerID string `json:"customer_id"`
	jwt.RegisteredClaims
}

// TokenService 店员与顾客令牌的签发与校验（HS256，两套独立密钥）
type TokenService struct {
	staffSecret    []byte
	customerSecret []byte
}

// NewTokenService 创建令牌服务
func NewTokenService(staffSecret, customerSecret string) *TokenService {
	return &TokenService{
		staffSecret:    []byte(strings.TrimSpace(staffSecret)),
		customerSecret: []byte(strings.TrimSpace(customerSecret)),
	}
}

// IssueStaffToken 签发店员令牌
func (s *TokenService) IssueStaffToken(staffID, merchantID, role string, ttl time.Duration) (string, time.Time, error) {
	if len(s.staffSecret) == 0 {
		return "", time.Time{}, ErrTokenSecretMissing
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := StaffJWTClaims{
		StaffID:          strings.TrimSpace(staffID),
		MerchantID:       strings.TrimSpace(merchantID),
		Role:             strings.TrimSpace(role),
		RegisteredClaims: registeredClaims(now, expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.staffSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseStaffToken 校验店员令牌
func (s *TokenService) ParseStaffToken(tokenString string) (*StaffJWTClaims, error) {
	if len(s.staffSecret) == 0 {
		return nil, ErrTokenSecretMissing
	}
	claims := &StaffJWTClaims{}
	if err := parseHS256(tokenString, claims, s.staffSecret); err != nil {
		return nil, err
	}
	if claims.StaffID == "" || claims.MerchantID == "" || claims.Role == "" {
		return nil, errors.New("staff token is missing identity claims")
	}
	return claims, nil
}

// IssueCustomerToken 签发顾客令牌
func (s *TokenService) IssueCustomerToken(customerID string, ttl time.Duration) (string, time.Time, error) {
	if len(s.customerSecret) == 0 {
		return "", time.Time{}, ErrTokenSecretMissing
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := CustomerJWTClaims{
		CustomerID:       strings.TrimSpace(customerID),
		RegisteredClaims: registeredClaims(now, expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.customerSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseCustomerToken 校验顾客令牌
func (s *TokenService) ParseCustomerToken(tokenString string) (*CustomerJWTClaims, error) {
	if len(s.customerSecret) == 0 {
		return nil, ErrTokenSecretMissing
	}
	claims := &CustomerJWTClaims{}
	if err := parseHS256(tokenString, claims, s.customerSecret); err != nil {
		return nil, err
	}
	if claims.CustomerID == "" {
		return nil, errors.New("customer token is missing customer id")
	}
	return claims, nil
}

func registeredClaims(now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

func parseHS256(tokenString string, claims jwt.Claims, secret []byte) error {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/beanstamp/internal/constants"
	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/metrics"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultVerificationWindow = 60 * time.Second
	defaultBackupCodeLength   = 6
	backupCodeMaxAttempts     = 8
	maxCustomerIDLength       = 64
)

// VerificationOptions 核验会话参数
type VerificationOptions struct {
	WindowSeconds    int
	BackupCodeLength int
}

// VerificationTicket 顾客端展示的核验凭据
type VerificationTicket struct {
	SessionToken string    `json:"session_token"`
	ScanPayload  string    `json:"scan_payload"`
	BackupCode   string    `json:"backup_code"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Verification 核验通过的顾客身份
type Verification struct {
	CustomerID   string    `json:"customer_id"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CodeVerifier 顾客扫码 / 备用码核验
type CodeVerifier struct {
	sessionRepo  repository.VerificationSessionRepository
	customerRepo repository.CustomerRepository
	window       time.Duration
	codeLength   int
	now          func() time.Time
}

// NewCodeVerifier 创建核验服务
func NewCodeVerifier(
	sessionRepo repository.VerificationSessionRepository,
	customerRepo repository.CustomerRepository,
	options VerificationOptions,
) *CodeVerifier {
	window := time.Duration(options.WindowSeconds) * time.Second
	if window <= 0 {
		window = defaultVerificationWindow
	}
	codeLength := options.BackupCodeLength
	if codeLength <= 0 {
		codeLength = defaultBackupCodeLength
	}
	return &CodeVerifier{
		sessionRepo:  sessionRepo,
		customerRepo: customerRepo,
		window:       window,
		codeLength:   codeLength,
		now:          time.Now,
	}
}

// BeginVerification 为顾客签发新的核验会话，并作废其旧会话
func (v *CodeVerifier) BeginVerification(ctx context.Context, customerID string) (*VerificationTicket, error) {
	customerID = strings.TrimSpace(customerID)
	if !validCustomerID(customerID) {
		return nil, ErrTokenMalformed
	}
	customer, err := v.customerRepo.GetByID(customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrCustomerUnknown
	}

	now := v.now().UTC()
	if _, err := v.sessionRepo.RevokeLiveByCustomer(customerID, now); err != nil {
		return nil, err
	}
	code, err := v.issueBackupCode(now)
	if err != nil {
		return nil, err
	}

	session := &models.VerificationSession{
		Token:      uuid.NewString(),
		CustomerID: customerID,
		BackupCode: code,
		IssuedAt:   now,
		ExpiresAt:  now.Add(v.window),
		CreatedAt:  now,
	}
	if err := v.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	logger.Debugw("verification_session_issued", "customer_id", customerID, "expires_at", session.ExpiresAt)

	return &VerificationTicket{
		SessionToken: session.Token,
		ScanPayload:  constants.ScanPayloadPrefix + customerID,
		BackupCode:   code,
		IssuedAt:     session.IssuedAt,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// Resolve 将扫码内容或备用码解析为顾客身份
func (v *CodeVerifier) Resolve(ctx context.Context, token string) (*Verification, error) {
	verification, err := v.resolve(strings.TrimSpace(token))
	metrics.VerificationsTotal.WithLabelValues(verificationOutcome(err)).Inc()
	return verification, err
}

func (v *CodeVerifier) resolve(token string) (*Verification, error) {
	if token == "" {
		return nil, ErrTokenMalformed
	}
	now := v.now().UTC()

	if v.isBackupCode(token) {
		session, err := v.sessionRepo.GetLatestByBackupCode(token)
		if err != nil {
			return nil, err
		}
		if session == nil || session.RevokedAt != nil {
			return nil, ErrBackupCodeInvalid
		}
		if !session.LiveAt(now) {
			return nil, ErrTokenExpired
		}
		return verificationOf(session), nil
	}

	customerID, err := parseScanPayload(token)
	if err != nil {
		return nil, err
	}
	customer, err := v.customerRepo.GetByID(customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrCustomerUnknown
	}
	session, err := v.sessionRepo.GetLatestByCustomer(customerID)
	if err != nil {
		return nil, err
	}
	if !session.LiveAt(now) {
		return nil, ErrTokenExpired
	}
	return verificationOf(session), nil
}

// EnsureFresh 在提交事务内复核核验会话仍然有效
func (v *CodeVerifier) EnsureFresh(tx *gorm.DB, sessionToken, customerID string, now time.Time) error {
	session, err := v.sessionRepo.WithTx(tx).GetByToken(sessionToken)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrTokenExpired
	}
	if session.CustomerID != strings.TrimSpace(customerID) {
		return ErrTokenMalformed
	}
	if !session.LiveAt(now) {
		return ErrTokenExpired
	}
	return nil
}

// PurgeExpired 清理过期超过 grace 的会话
func (v *CodeVerifier) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return v.sessionRepo.DeleteExpiredBefore(v.now().UTC().Add(-grace))
}

func (v *CodeVerifier) isBackupCode(token string) bool {
	if len(token) != v.codeLength {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (v *CodeVerifier) issueBackupCode(now time.Time) (string, error) {
	for attempt := 0; attempt < backupCodeMaxAttempts; attempt++ {
		code, err := randomDigits(v.codeLength)
		if err != nil {
			return "", err
		}
		inUse, err := v.sessionRepo.BackupCodeInUse(code, now)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("backup code space exhausted after %d attempts", backupCodeMaxAttempts)
}

func randomDigits(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func parseScanPayload(token string) (string, error) {
	customerID := token
	if strings.HasPrefix(token, constants.ScanPayloadPrefix) {
		customerID = strings.TrimPrefix(token, constants.ScanPayloadPrefix)
	}
	if !validCustomerID(customerID) {
		return "", ErrTokenMalformed
	}
	return customerID, nil
}

func validCustomerID(id string) bool {
	if id == "" || len(id) > maxCustomerIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func verificationOf(session *models.VerificationSession) *Verification {
	return &Verification{
		CustomerID:   session.CustomerID,
		SessionToken: session.Token,
		ExpiresAt:    session.ExpiresAt,
	}
}

func verificationOutcome(err error) string {
	switch err {
	case nil:
		return "ok"
	case ErrTokenExpired:
		return "expired"
	case ErrTokenMalformed:
		return "malformed"
	case ErrCustomerUnknown:
		return "unknown_customer"
	case ErrBackupCodeInvalid:
		return "invalid_backup_code"
	}
	return "error"
}

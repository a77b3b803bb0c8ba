package service

import (
	"context"

	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/queue"
)

// ChurnOffer 外发给消息渠道的召回优惠
type ChurnOffer struct {
	CandidateID uint
	CustomerID  string
	MerchantID  string
	OfferType   string
	RiskLevel   string
}

// OfferSender 召回优惠外发渠道
type OfferSender interface {
	SendChurnOffer(ctx context.Context, offer ChurnOffer) error
}

// NewOfferSender 队列可用时投递到队列，否则仅记录日志
func NewOfferSender(client *queue.Client) OfferSender {
	if client.Enabled() {
		return &QueueOfferSender{client: client}
	}
	return LogOfferSender{}
}

// QueueOfferSender 通过 asynq 投递召回优惠
type QueueOfferSender struct {
	client *queue.Client
}

// SendChurnOffer 投递召回优惠任务
func (s *QueueOfferSender) SendChurnOffer(_ context.Context, offer ChurnOffer) error {
	return s.client.EnqueueChurnOffer(queue.ChurnOfferPayload{
		CandidateID: offer.CandidateID,
		CustomerID:  offer.CustomerID,
		MerchantID:  offer.MerchantID,
		OfferType:   offer.OfferType,
		RiskLevel:   offer.RiskLevel,
	})
}

// LogOfferSender 仅记录日志的外发渠道
type LogOfferSender struct{}

// SendChurnOffer 记录召回优惠
func (LogOfferSender) SendChurnOffer(_ context.Context, offer ChurnOffer) error {
	logger.Infow("churn_offer_emitted",
		"candidate_id", offer.CandidateID,
		"customer_id", offer.CustomerID,
		"merchant_id", offer.MerchantID,
		"offer_type", offer.OfferType,
		"risk_level", offer.RiskLevel,
	)
	return nil
}

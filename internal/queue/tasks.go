package queue

import (
	"encoding/json"
	"fmt"

	"github.com/beanstamp/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskChurnScorePass 商户流失评分任务
	TaskChurnScorePass = constants.TaskChurnScorePass
	// TaskChurnOffer 召回优惠外发任务，由外部消息服务消费
	TaskChurnOffer = constants.TaskChurnOffer
)

// ChurnScorePassPayload 流失评分任务载荷，MerchantID 为空表示全部商户
type ChurnScorePassPayload struct {
	MerchantID string `json:"merchant_id"`
}

// ChurnOfferPayload 召回优惠外发载荷
type ChurnOfferPayload struct {
	CandidateID uint   `json:"candidate_id"`
	CustomerID  string `json:"customer_id"`
	MerchantID  string `json:"merchant_id"`
	OfferType   string `json:"offer_type"`
	RiskLevel   string `json:"risk_level"`
}

// NewChurnScorePassTask 创建流失评分任务
func NewChurnScorePassTask(payload ChurnScorePassPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChurnScorePass, body), nil
}

// NewChurnOfferTask 创建召回优惠外发任务
func NewChurnOfferTask(payload ChurnOfferPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChurnOffer, body), nil
}

// ParseChurnScorePassPayload 解析流失评分任务载荷
func ParseChurnScorePassPayload(task *asynq.Task) (ChurnScorePassPayload, error) {
	var payload ChurnScorePassPayload
	if task == nil {
		return payload, fmt.Errorf("nil task")
	}
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode churn score payload: %w", err)
	}
	return payload, nil
}

func churnOfferTaskID(candidateID uint) string {
	return fmt.Sprintf("churn_offer:%d", candidateID)
}

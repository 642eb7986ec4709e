package portalapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wisefido-health/internal/common/config"
	"wisefido-health/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIError 门户 API 错误响应
type APIError struct {
	Message string `json:"message"`
}

// Client 门户 REST API 客户端
// 实现 repository.ThresholdStore 与 repository.ReadingStore
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
	// 查询最新记录时扫描的条数
	historyLimit int
}

// NewClient 创建门户 API 客户端
func NewClient(cfg *config.PortalConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &Client{
		httpClient:   client,
		logger:       logger,
		historyLimit: 50,
	}
}

// portalID 门户使用数值ID
func portalID(field, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, &models.ValidationError{Field: field, Reason: fmt.Sprintf("portal ids are numeric, got %q", id)}
	}
	return n, nil
}

func (c *Client) checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		c.logger.Error("Portal API call failed",
			zap.String("op", op),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call portal API %s: %w", op, err)
	}
	if resp.IsError() {
		msg := ""
		if apiErr, ok := resp.Error().(*APIError); ok && apiErr != nil {
			msg = apiErr.Message
		}
		c.logger.Error("Portal API returned error",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", msg),
		)
		return fmt.Errorf("portal API %s error: %s (status: %d)", op, msg, resp.StatusCode())
	}
	return nil
}

func isNotFound(resp *resty.Response) bool {
	return resp != nil && resp.StatusCode() == http.StatusNotFound
}

package servicem8

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// apiKeyHeader は外部APIの静的認証ヘッダー名。
const apiKeyHeader = "X-Api-Key"

// MetricsRecorder は外部API呼び出しのメトリクス記録に必要なインターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordUpstreamRequest(endpoint string, statusCode int)
	RecordUpstreamLatency(endpoint string, duration time.Duration)
}

// Client は外部フィールドサービスAPIのクライアント。
// リトライは行わず、失敗はそのまま呼び出し元に伝播する。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     MetricsRecorder
	baseURL     string // テスト用に差し替え可能
	apiKey      string
	maxRespSize int64
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientにはタイムアウト設定済みのクライアントを渡すこと。
// metricsはnilを許容する（記録をスキップする）。
func NewClient(httpClient *http.Client, logger *slog.Logger, metrics MetricsRecorder, baseURL, apiKey string, maxRespSize int64) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		metrics:     metrics,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		maxRespSize: maxRespSize,
	}
}

// ListJobs はジョブコレクション全体を取得する。
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	body, err := c.get(ctx, "/job.json", nil)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("ジョブコレクションの取得で404が返されました")
	}
	return decodeJobs(body)
}

// GetJob は外部識別子でジョブを1件取得する。
// 外部システムが404を返した場合はエラーではなくnilを返す。
func (c *Client) GetJob(ctx context.Context, jobUUID string) (*Job, error) {
	body, err := c.get(ctx, "/job/"+url.PathEscape(jobUUID)+".json", nil)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	return decodeJob(body)
}

// CreateJob はジョブを作成する。
// fieldsには外部APIのフィールド名をキーとした作成パラメータを渡す。
// レスポンスのuuid検証は呼び出し元の責務（欠落は不正レスポンスとして扱う）。
func (c *Client) CreateJob(ctx context.Context, fields map[string]any) (*Job, error) {
	body, err := c.send(ctx, http.MethodPost, "/job.json", fields)
	if err != nil {
		return nil, err
	}
	return decodeJob(body)
}

// UpdateJob はジョブを部分更新する。
// fieldsに含まれるフィールドのみ送信し、省略されたフィールドは上書きされない。
func (c *Client) UpdateJob(ctx context.Context, jobUUID string, fields map[string]any) error {
	_, err := c.send(ctx, http.MethodPut, "/job/"+url.PathEscape(jobUUID)+".json", fields)
	return err
}

// GetCompany は外部識別子で会社を1件取得する。404の場合はnilを返す。
func (c *Client) GetCompany(ctx context.Context, companyUUID string) (*Company, error) {
	body, err := c.get(ctx, "/company/"+url.PathEscape(companyUUID)+".json", nil)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	company := &Company{}
	if err := json.Unmarshal(body, company); err != nil {
		return nil, fmt.Errorf("会社レスポンスのパースに失敗しました: %w", err)
	}
	return company, nil
}

// CreateCompany は会社を作成する。
func (c *Client) CreateCompany(ctx context.Context, fields map[string]any) (*Company, error) {
	body, err := c.send(ctx, http.MethodPost, "/company.json", fields)
	if err != nil {
		return nil, err
	}
	company := &Company{}
	if err := json.Unmarshal(body, company); err != nil {
		return nil, fmt.Errorf("会社レスポンスのパースに失敗しました: %w", err)
	}
	return company, nil
}

// ListJobAttachments はジョブの添付ファイル一覧を取得する。
func (c *Client) ListJobAttachments(ctx context.Context, jobUUID string) ([]Attachment, error) {
	query := url.Values{}
	query.Set("job_uuid", jobUUID)

	body, err := c.get(ctx, "/attachment.json", query)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var attachments []Attachment
	if err := json.Unmarshal(body, &attachments); err != nil {
		return nil, fmt.Errorf("添付ファイルレスポンスのパースに失敗しました: %w", err)
	}
	return attachments, nil
}

// get はGETリクエストを実行しレスポンスボディを返す。
// 404の場合は(nil, nil)を返し、呼び出し元が不在として扱う。
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	return c.do(req, path, true)
}

// send はボディ付きのPOST/PUTリクエストを実行しレスポンスボディを返す。
func (c *Client) send(ctx context.Context, method, path string, fields map[string]any) ([]byte, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, false)
}

// do はリクエストを実行し、ステータス検証とメトリクス記録を行う。
// allow404がtrueの場合、404は(nil, nil)として返す。
func (c *Client) do(req *http.Request, endpoint string, allow404 bool) ([]byte, error) {
	req.Header.Set(apiKeyHeader, c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamLatency(endpoint, time.Since(start))
	}
	if err != nil {
		c.logger.Error("外部APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("method", req.Method),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("外部APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(endpoint, resp.StatusCode)
	}

	if resp.StatusCode == http.StatusNotFound && allow404 {
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("外部APIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.String("method", req.Method),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("外部APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxRespSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return body, nil
}

// decodeJobs はジョブ配列をパースし、各要素の生データを保持する。
func decodeJobs(body []byte) ([]Job, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("ジョブ一覧レスポンスのパースに失敗しました: %w", err)
	}

	jobs := make([]Job, 0, len(raws))
	for _, raw := range raws {
		var job Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, fmt.Errorf("ジョブレスポンスのパースに失敗しました: %w", err)
		}
		job.Raw = raw
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// decodeJob はジョブ1件をパースし、生データを保持する。
func decodeJob(body []byte) (*Job, error) {
	job := &Job{}
	if err := json.Unmarshal(body, job); err != nil {
		return nil, fmt.Errorf("ジョブレスポンスのパースに失敗しました: %w", err)
	}
	job.Raw = json.RawMessage(body)
	return job, nil
}

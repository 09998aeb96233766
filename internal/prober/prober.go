package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/models"
)

// ProbeResult 探测结果
type ProbeResult struct {
	Success         bool      `json:"success"`
	LatencyMs       int64     `json:"latency_ms"`
	Error           string    `json:"error,omitempty"`
	AvailableModels []string  `json:"available_models,omitempty"`
	CheckedAt       time.Time `json:"checked_at"`
}

// CheckResult 单项检查结果
type CheckResult struct {
	Success    bool   `json:"success"`
	LatencyMs  int64  `json:"latency_ms"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Prober 供应商连通性探测器
// 三项检查（可达性、认证、模型发现）相互独立，可单独调用或通过 Probe 组合
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// NewProber 创建探测器
func NewProber(timeout time.Duration) *Prober {
	if timeout == 0 {
		timeout = 30 * time.Second // 默认 30 秒超时
	}

	return &Prober{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Timeout 返回单次探测超时
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// CheckEndpoint 端点可达性检查
// 先发 HEAD，不被支持时回退 GET；任何 < 500 的响应都视为可达
// （远端活着并在应答，即使返回客户端错误）；网络层失败视为不可达
func (p *Prober) CheckEndpoint(ctx context.Context, baseURL string) *CheckResult {
	start := time.Now()
	result := &CheckResult{}

	resp, err := p.doRequest(ctx, http.MethodHead, baseURL, nil)
	if err != nil || resp.StatusCode == http.StatusMethodNotAllowed {
		if resp != nil {
			resp.Body.Close()
		}
		resp, err = p.doRequest(ctx, http.MethodGet, baseURL, nil)
	}
	result.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		result.Error = fmt.Sprintf("endpoint unreachable: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode >= 500 {
		result.Error = fmt.Sprintf("endpoint returned HTTP %d", resp.StatusCode)
		return result
	}

	result.Success = true
	return result
}

// CheckAuth 认证检查
// 调用家族测试端点：200 成功；401 凭证无效；403 无访问权限；
// 其余状态码一律视为成功（许多供应商对不支持的方法返回非标准状态码）
func (p *Prober) CheckAuth(ctx context.Context, provider *models.Provider, cfg *models.AuthConfig, fam Family) *CheckResult {
	start := time.Now()
	result := &CheckResult{}

	testURL := ""
	if cfg != nil {
		testURL = cfg.TestEndpoint
	}
	if testURL == "" {
		testURL = fam.TestEndpoint(provider.BaseURL)
	}

	resp, err := p.doRequest(ctx, http.MethodGet, testURL, fam.BuildAuthHeaders(cfg))
	result.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		result.Error = fmt.Sprintf("auth request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		result.Error = "invalid credentials"
	case http.StatusForbidden:
		result.Error = "access forbidden"
	default:
		result.Success = true
	}

	return result
}

// DiscoverModels 模型发现
// 尽力而为：任何失败都返回空列表，不影响整体探测结论
func (p *Prober) DiscoverModels(ctx context.Context, provider *models.Provider, cfg *models.AuthConfig, fam Family) []string {
	// 家族提供专用客户端时优先使用
	if lister, ok := fam.(ModelLister); ok {
		if ids, err := lister.ListModels(ctx, provider.BaseURL, cfg); err == nil {
			return ids
		}
		return nil
	}

	resp, err := p.doRequest(ctx, http.MethodGet, fam.ModelsEndpoint(provider.BaseURL), fam.BuildAuthHeaders(cfg))
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil
	}

	return fam.ParseModelList(body)
}

// Probe 完整探测流水线
// 依次执行可达性 → 认证 → 模型发现，前两项任一失败即终止并带回具体错误；
// 模型发现失败不致命
func (p *Prober) Probe(ctx context.Context, provider *models.Provider, cfg *models.AuthConfig) *ProbeResult {
	start := time.Now()
	result := &ProbeResult{CheckedAt: start}
	fam := FamilyFor(provider)

	if endpoint := p.CheckEndpoint(ctx, provider.BaseURL); !endpoint.Success {
		result.LatencyMs = time.Since(start).Milliseconds()
		result.Error = endpoint.Error
		return result
	}

	if auth := p.CheckAuth(ctx, provider, cfg, fam); !auth.Success {
		result.LatencyMs = time.Since(start).Milliseconds()
		result.Error = auth.Error
		return result
	}

	result.AvailableModels = p.DiscoverModels(ctx, provider, cfg, fam)
	result.LatencyMs = time.Since(start).Milliseconds()
	result.Success = true
	return result
}

// ProbeSimple 简化的探测入口（内部构造超时 context）
func (p *Prober) ProbeSimple(provider *models.Provider, cfg *models.AuthConfig) *ProbeResult {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.Probe(ctx, provider, cfg)
}

// doRequest 发送请求并注入请求头
func (p *Prober) doRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "Vega-Registry/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return p.client.Do(req)
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/config"
	"github.com/Xingyelan/Vega-Registry/internal/events"
	"github.com/Xingyelan/Vega-Registry/internal/logging"
	"github.com/Xingyelan/Vega-Registry/internal/models"
	"github.com/Xingyelan/Vega-Registry/internal/prober"
)

var (
	// ErrProviderNotFound 注册表中不存在该供应商
	ErrProviderNotFound = errors.New("provider not found in registry")
	// ErrNoSuitableProvider 没有满足条件的供应商
	ErrNoSuitableProvider = errors.New("no provider satisfies the requirements")
)

// Catalog 注册表消费的目录接口
type Catalog interface {
	// ActiveProviders 所有激活的供应商（按目录顺序）
	ActiveProviders() ([]*models.Provider, error)

	// ModelsForProvider 供应商的激活模型
	ModelsForProvider(providerID uint) ([]*models.Model, error)
}

// HealthSource 健康状态来源接口
type HealthSource interface {
	GetProviderHealth() (map[uint]*models.ProviderHealth, error)
}

// Registry 供应商注册表
// 面向请求路径的供应商缓存视图：按 TTL 或显式刷新整体重建，
// 读者在任一时刻看到的都是完整快照，不存在半更新状态
type Registry struct {
	catalog Catalog
	health  HealthSource // 可为 nil（无健康数据时全部视为可用）
	prober  *prober.Prober
	events  *events.Service
	logger  *logging.Logger
	cfg     config.RegistryConfig

	mu          sync.RWMutex
	cache       map[string]*ProviderDetails
	order       []string // 目录遍历顺序，评分平手时先到先得
	lastRefresh time.Time

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewRegistry 创建供应商注册表
func NewRegistry(
	cfg config.RegistryConfig,
	catalog Catalog,
	health HealthSource,
	pb *prober.Prober,
	eventLog *events.Service,
	logger *logging.Logger,
) *Registry {
	return &Registry{
		catalog: catalog,
		health:  health,
		prober:  pb,
		events:  eventLog,
		logger:  logger,
		cfg:     cfg,
		cache:   make(map[string]*ProviderDetails),
	}
}

// Start 启动注册表
// 先做一次初始刷新，再启动可用性子循环
func (r *Registry) Start() {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if r.running {
		return
	}

	if err := r.Refresh(); err != nil {
		r.logger.Warnf("注册表初始刷新失败: %v", err)
	}

	r.stop = make(chan struct{})
	r.wg.Add(1)
	go r.statusLoop()
	r.running = true
}

// Stop 停止注册表子循环
func (r *Registry) Stop() {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if !r.running {
		return
	}
	close(r.stop)
	r.wg.Wait()
	r.running = false
}

// Refresh 全量重建缓存
// 新快照完整构建后一次性替换旧快照；目录不可用时保留旧缓存返回错误，
// 瞬时的存储故障只是让视图变旧，不会清空注册表
func (r *Registry) Refresh() error {
	providers, err := r.catalog.ActiveProviders()
	if err != nil {
		return fmt.Errorf("failed to load providers from catalog: %w", err)
	}

	var healthByProvider map[uint]*models.ProviderHealth
	if r.health != nil {
		healthByProvider, err = r.health.GetProviderHealth()
		if err != nil {
			// 健康数据拿不到时不阻塞刷新，状态按可用处理
			r.logger.Warnf("刷新注册表时获取健康数据失败: %v", err)
			healthByProvider = nil
		}
	}

	now := time.Now()
	newCache := make(map[string]*ProviderDetails, len(providers))
	newOrder := make([]string, 0, len(providers))

	for _, p := range providers {
		details, err := r.buildDetails(p, healthByProvider, now)
		if err != nil {
			// 构建失败的供应商保留为 error 条目，调用方能看到故障而不是凭空消失
			r.logger.Warnf("构建供应商 %s 缓存条目失败: %v", p.Identifier, err)
			details = &ProviderDetails{
				ID:          p.Identifier,
				ProviderID:  p.ID,
				Name:        p.Name,
				BaseURL:     p.BaseURL,
				Status:      StatusError,
				LastChecked: now,
			}
		}
		newCache[details.ID] = details
		newOrder = append(newOrder, details.ID)
	}

	// 旧式兜底：只补充动态目录没有的标识符
	for _, legacy := range legacyProviders(now) {
		baseID := strings.TrimSuffix(legacy.ID, "-basic")
		if _, ok := newCache[legacy.ID]; ok {
			continue
		}
		if _, ok := newCache[baseID]; ok {
			continue
		}
		newCache[legacy.ID] = legacy
		newOrder = append(newOrder, legacy.ID)
	}

	r.mu.Lock()
	r.cache = newCache
	r.order = newOrder
	r.lastRefresh = now
	r.mu.Unlock()

	if r.events != nil {
		r.events.LogInfo(models.EventTypeRegistryRefresh,
			fmt.Sprintf("注册表已刷新: %d 个供应商", len(newCache)),
			map[string]interface{}{"provider_count": len(newCache)})
	}

	return nil
}

// GetAvailableProviders 全部缓存条目（按目录顺序）
func (r *Registry) GetAvailableProviders() []*ProviderDetails {
	r.ensureFresh()

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*ProviderDetails, 0, len(r.order))
	for _, id := range r.order {
		if d, ok := r.cache[id]; ok {
			copied := *d
			result = append(result, &copied)
		}
	}
	return result
}

// GetProvider 查找单个供应商
// 先直接匹配标识符，再尝试 "{id}-basic" 兼容旧命名
func (r *Registry) GetProvider(id string) (*ProviderDetails, error) {
	r.ensureFresh()

	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.cache[id]; ok {
		copied := *d
		return &copied, nil
	}
	if d, ok := r.cache[id+"-basic"]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
}

// FindProvidersWithCapabilities 按能力过滤供应商
// 只返回状态为 available 且满足所有条件的供应商
func (r *Registry) FindProvidersWithCapabilities(req Requirements) []*ProviderDetails {
	r.ensureFresh()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*ProviderDetails
	for _, id := range r.order {
		d, ok := r.cache[id]
		if !ok || d.Status != StatusAvailable {
			continue
		}
		if d.Satisfies(req) {
			copied := *d
			result = append(result, &copied)
		}
	}
	return result
}

// GetBestProvider 在满足条件的供应商中选出评分最高者
// 平手时按目录遍历顺序先到先得
func (r *Registry) GetBestProvider(req Requirements) (*ProviderDetails, error) {
	candidates := r.FindProvidersWithCapabilities(req)
	if len(candidates) == 0 {
		return nil, ErrNoSuitableProvider
	}

	best := candidates[0]
	bestScore := best.Score()
	for _, c := range candidates[1:] {
		if score := c.Score(); score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best, nil
}

// GetRegistryStatus 注册表运行状态
func (r *Registry) GetRegistryStatus() *Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := &Status{
		ProviderCount: len(r.cache),
		LastRefresh:   r.lastRefresh,
		CacheTTL:      r.cfg.CacheTTL.String(),
		NextRefresh:   r.lastRefresh.Add(r.cfg.CacheTTL),
	}
	for _, d := range r.cache {
		if d.Status == StatusAvailable {
			status.AvailableCount++
		}
		if d.Legacy {
			status.LegacyCount++
		}
	}
	return status
}

// ==================== 内部实现 ====================

// buildDetails 把供应商和它的模型拼装成缓存条目
func (r *Registry) buildDetails(p *models.Provider, healthByProvider map[uint]*models.ProviderHealth, now time.Time) (*ProviderDetails, error) {
	caps, err := p.ParseCapabilities()
	if err != nil {
		return nil, err
	}

	modelList, err := r.catalog.ModelsForProvider(p.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(modelList))
	defaultModel := ""
	for _, m := range modelList {
		ids = append(ids, m.Identifier)
		if m.IsDefault {
			defaultModel = m.Identifier
		}
	}
	if defaultModel == "" && len(ids) > 0 {
		defaultModel = ids[0]
	}

	status := StatusAvailable
	lastChecked := now
	if h, ok := healthByProvider[p.ID]; ok {
		lastChecked = h.LastCheck
		if h.Status == models.HealthStatusDown {
			status = StatusUnavailable
		}
	}

	return &ProviderDetails{
		ID:           p.Identifier,
		ProviderID:   p.ID,
		Name:         p.Name,
		BaseURL:      p.BaseURL,
		Models:       ids,
		DefaultModel: defaultModel,
		Capabilities: *caps,
		Status:       status,
		LastChecked:  lastChecked,
	}, nil
}

// ensureFresh 超过 TTL 时触发刷新
// 刷新失败保留旧快照
func (r *Registry) ensureFresh() {
	r.mu.RLock()
	expired := time.Since(r.lastRefresh) > r.cfg.CacheTTL
	r.mu.RUnlock()

	if !expired {
		return
	}
	if err := r.Refresh(); err != nil {
		r.logger.Warnf("注册表刷新失败，继续使用旧缓存: %v", err)
	}
}

// statusLoop 可用性子循环
// 只翻转缓存条目的 available/unavailable/error 状态，
// 不写任何持久化健康历史（那是健康监控器的职责）
func (r *Registry) statusLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.StatusCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refreshStatuses()
		case <-r.stop:
			return
		}
	}
}

// refreshStatuses 轻量探测所有缓存条目的端点可达性
// 探测基于快照进行，完成后整体替换缓存
func (r *Registry) refreshStatuses() {
	r.mu.RLock()
	snapshot := make([]*ProviderDetails, 0, len(r.order))
	for _, id := range r.order {
		if d, ok := r.cache[id]; ok {
			copied := *d
			snapshot = append(snapshot, &copied)
		}
	}
	r.mu.RUnlock()

	now := time.Now()
	var wg sync.WaitGroup
	for _, d := range snapshot {
		wg.Add(1)
		go func(d *ProviderDetails) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					d.Status = StatusError
					d.LastChecked = now
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), r.prober.Timeout())
			defer cancel()

			if check := r.prober.CheckEndpoint(ctx, d.BaseURL); check.Success {
				d.Status = StatusAvailable
			} else {
				d.Status = StatusUnavailable
			}
			d.LastChecked = now
		}(d)
	}
	wg.Wait()

	statuses := make(map[string]*ProviderDetails, len(snapshot))
	for _, d := range snapshot {
		statuses[d.ID] = d
	}

	// 基于当前缓存克隆后整体替换；期间如果发生过全量刷新，
	// 以刷新后的条目为准，只在条目仍存在时覆盖其状态
	r.mu.Lock()
	newCache := make(map[string]*ProviderDetails, len(r.cache))
	for id, d := range r.cache {
		copied := *d
		if probed, ok := statuses[id]; ok {
			copied.Status = probed.Status
			copied.LastChecked = probed.LastChecked
		}
		newCache[id] = &copied
	}
	r.cache = newCache
	r.mu.Unlock()
}

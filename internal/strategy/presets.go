package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"optiq/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// presetSchema 约束预设文件：阈值必须是 [0,100] 的数。
// 非法文件在重载时被整体拒绝，继续使用上一份快照。
const presetSchema = `{
  "type": "object",
  "required": ["presets"],
  "properties": {
    "active": {"type": "string"},
    "presets": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "properties": {
          "rsi_buy_threshold": {"type": "number", "minimum": 0, "maximum": 100},
          "rsi_sell_threshold": {"type": "number", "minimum": 0, "maximum": 100},
          "stochastic_buy_threshold": {"type": "number", "minimum": 0, "maximum": 100},
          "stochastic_sell_threshold": {"type": "number", "minimum": 0, "maximum": 100}
        },
        "additionalProperties": false
      }
    }
  }
}`

// presetFile 映射 strategies.yaml。
type presetFile struct {
	Active  string                `yaml:"active"`
	Presets map[string]Thresholds `yaml:"presets"`
}

// PresetSnapshot 是一次成功加载的结果。
type PresetSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Active   string
	Current  Thresholds
}

// Registry 管理阈值预设并监听文件变更。实现 ThresholdSource。
type Registry struct {
	path     string
	fallback Thresholds
	schema   *jsonschema.Schema
	v        *viper.Viper

	mu       sync.RWMutex
	snapshot PresetSnapshot
}

// NewRegistry 读取预设文件并开始监听更新。fallback 在文件缺失
// 预设键时兜底（通常来自主配置的 signal 段）。
func NewRegistry(path string, fallback Thresholds) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("preset registry requires path")
	}
	schema, err := compilePresetSchema()
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy presets failed: %w", err)
	}
	r := &Registry{path: path, fallback: fallback, schema: schema, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("strategy preset reload failed, keeping previous snapshot: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Thresholds 返回当前生效的阈值。
func (r *Registry) Thresholds() Thresholds {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.Current
}

// Snapshot 返回完整快照（版本号用于观测）。
func (r *Registry) Snapshot() PresetSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

func (r *Registry) reload() error {
	cfg, err := readPresetFile(r.path)
	if err != nil {
		return err
	}
	if err := r.validateFile(cfg); err != nil {
		return err
	}
	active := strings.TrimSpace(cfg.Active)
	if active == "" {
		active = "default"
	}
	preset, ok := cfg.Presets[active]
	if !ok {
		return fmt.Errorf("active preset %q not found", active)
	}
	current := mergeThresholds(r.fallback, preset)

	r.mu.Lock()
	r.snapshot = PresetSnapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Active:   active,
		Current:  current,
	}
	version := r.snapshot.Version
	r.mu.Unlock()
	logger.Infof("strategy presets loaded: active=%s version=%d", active, version)
	return nil
}

// validateFile 将 yaml 重新序列化为通用结构后过一遍 JSON Schema。
func (r *Registry) validateFile(cfg presetFile) error {
	raw, err := json.Marshal(toGeneric(cfg))
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := r.schema.Validate(doc); err != nil {
		return fmt.Errorf("strategy presets schema violation: %w", err)
	}
	return nil
}

func toGeneric(cfg presetFile) map[string]any {
	presets := make(map[string]any, len(cfg.Presets))
	for name, p := range cfg.Presets {
		presets[name] = map[string]any{
			"rsi_buy_threshold":         p.RSIBuy,
			"rsi_sell_threshold":        p.RSISell,
			"stochastic_buy_threshold":  p.StochBuy,
			"stochastic_sell_threshold": p.StochSell,
		}
	}
	out := map[string]any{"presets": presets}
	if cfg.Active != "" {
		out["active"] = cfg.Active
	}
	return out
}

// mergeThresholds 用预设覆盖兜底值；预设里的 0 视为未填。
func mergeThresholds(base, override Thresholds) Thresholds {
	out := base
	if override.RSIBuy > 0 {
		out.RSIBuy = override.RSIBuy
	}
	if override.RSISell > 0 {
		out.RSISell = override.RSISell
	}
	if override.StochBuy > 0 {
		out.StochBuy = override.StochBuy
	}
	if override.StochSell > 0 {
		out.StochSell = override.StochSell
	}
	return out
}

func readPresetFile(path string) (presetFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return presetFile{}, fmt.Errorf("read strategy presets failed: %w", err)
	}
	var cfg presetFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return presetFile{}, fmt.Errorf("parse strategy presets failed: %w", err)
	}
	return cfg, nil
}

func compilePresetSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("presets.json", strings.NewReader(presetSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("presets.json")
}
